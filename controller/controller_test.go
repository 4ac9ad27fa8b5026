package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"chargecal/calendar"
	"chargecal/chargeapi"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

type fakeClient struct {
	mu        sync.Mutex
	charges   map[string]chargeapi.TimeCharge
	holidays  chargeapi.Holidays
	nextID    int
	listCalls map[string]int
	updates   []chargeapi.Payload
	failWith  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		charges:   make(map[string]chargeapi.TimeCharge),
		nextID:    100,
		listCalls: make(map[string]int),
	}
}

func (f *fakeClient) seed(charge chargeapi.TimeCharge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if charge.Status == "" {
		charge.Status = "pending"
	}
	f.charges[charge.ID.String()] = charge
}

func (f *fakeClient) calls(period timeutil.Period) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[period.Key()]
}

func (f *fakeClient) ListTimeCharges(_ context.Context, year int, month time.Month) ([]chargeapi.TimeCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[timeutil.Period{Year: year, Month: month}.Key()]++

	out := make([]chargeapi.TimeCharge, 0)
	for _, charge := range f.charges {
		start, err := timeutil.ParseLocal(charge.StartTime, time.UTC)
		if err != nil {
			return nil, err
		}
		if start.Year() == year && start.Month() == month {
			out = append(out, charge)
		}
	}
	return out, nil
}

func (f *fakeClient) ListLeaves(context.Context, time.Time, time.Time, int) ([]chargeapi.Leave, error) {
	return nil, nil
}

func (f *fakeClient) ListHolidays(context.Context, time.Time, time.Time, int) (chargeapi.Holidays, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holidays, nil
}

func (f *fakeClient) CreateTimeCharge(_ context.Context, payload chargeapi.Payload) (chargeapi.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return chargeapi.MutationResult{}, f.failWith
	}
	f.nextID++
	id := chargeapi.FlexibleID(strconv.Itoa(f.nextID))
	f.charges[id.String()] = chargeFromPayload(id, payload, "pending")
	return chargeapi.MutationResult{ID: id}, nil
}

func (f *fakeClient) UpdateTimeCharge(_ context.Context, id string, payload chargeapi.Payload) (chargeapi.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, payload)
	if f.failWith != nil {
		return chargeapi.MutationResult{}, f.failWith
	}
	current, ok := f.charges[id]
	if !ok {
		return chargeapi.MutationResult{}, fmt.Errorf("time charge %s not found", id)
	}
	f.charges[id] = chargeFromPayload(chargeapi.FlexibleID(id), payload, current.Status)
	return chargeapi.MutationResult{ID: chargeapi.FlexibleID(id)}, nil
}

func (f *fakeClient) DeleteTimeCharge(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.charges, id)
	return nil
}

func (f *fakeClient) ReopenTimeCharges(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for _, id := range ids {
		charge := f.charges[id]
		charge.Status = "pending"
		f.charges[id] = charge
	}
	return nil
}

func chargeFromPayload(id chargeapi.FlexibleID, payload chargeapi.Payload, status string) chargeapi.TimeCharge {
	return chargeapi.TimeCharge{
		ID:                 id,
		StartTime:          payload.StartTime,
		EndTime:            payload.EndTime,
		IsOT:               payload.IsOT,
		NextDayOT:          payload.NextDayOT,
		OTType:             payload.OTType,
		Remarks:            payload.Remarks,
		TimeChargeType:     payload.TimeChargeType,
		Status:             status,
		ProjectID:          payload.ProjectID,
		ProjectCode:        payload.ProjectCode,
		StageID:            payload.StageID,
		StageName:          payload.StageName,
		Activity:           payload.Activity,
		DepartmentalTaskID: payload.DepartmentalTaskID,
	}
}

func externalCharge(id, start, end, status string) chargeapi.TimeCharge {
	return chargeapi.TimeCharge{
		ID:             chargeapi.FlexibleID(id),
		StartTime:      start,
		EndTime:        end,
		TimeChargeType: 1,
		Status:         status,
		ProjectID:      "11",
		ProjectCode:    "P-11",
		StageID:        "3",
		StageName:      "Design",
		Activity:       "Drafting",
	}
}

func externalRecord(start, end time.Time) timecharge.Record {
	return timecharge.Record{
		Kind:        timecharge.KindExternal,
		Start:       start,
		End:         end,
		ProjectID:   "11",
		ProjectCode: "P-11",
		StageID:     "3",
		Activity:    "Drafting",
	}
}

func utc(value string) time.Time {
	parsed, err := time.ParseInLocation(timeutil.LocalLayout, value, time.UTC)
	if err != nil {
		panic(err)
	}
	return parsed
}

var march = timeutil.Period{Year: 2024, Month: time.March}
var april = timeutil.Period{Year: 2024, Month: time.April}

func newTestController(client chargeapi.Client) *Controller {
	return New(client, Options{Location: time.UTC})
}

func eventByRef(t *testing.T, events []calendar.Event, ref calendar.EventRef) calendar.Event {
	t.Helper()
	for _, event := range events {
		if event.Ref == ref {
			return event
		}
	}
	t.Fatalf("event %s not found in %v", ref, events)
	return calendar.Event{}
}

func countRecord(events []calendar.Event, id string) int {
	count := 0
	for _, event := range events {
		if event.OriginalID == id {
			count++
		}
	}
	return count
}

func TestController_DragMoveRejectedBeforeValidation(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("1", "2024-03-11T09:00:00", "2024-03-11T11:00:00", "pending"))
	ctrl := newTestController(client)
	ctx := context.Background()

	events, err := ctrl.Events(ctx, march)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	event := eventByRef(t, events, calendar.Whole("1"))

	_, err = ctrl.Drag(ctx, event, event.Start.Add(time.Hour), event.End.Add(time.Hour))
	var rejection *ConflictRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected conflict rejection, got %v", err)
	}
	if rejection.Reason != MessageMoveDisabled {
		t.Fatalf("unexpected reason %q", rejection.Reason)
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		t.Fatalf("expected gate to run before validation")
	}
	if len(client.updates) != 0 {
		t.Fatalf("expected no remote call, got %d", len(client.updates))
	}
}

func TestController_CreateRefreshesPeriod(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	ctrl := newTestController(client)
	ctx := context.Background()

	if _, err := ctrl.Events(ctx, march); err != nil {
		t.Fatalf("events: %v", err)
	}

	created, err := ctrl.Create(ctx, externalRecord(utc("2024-03-11T09:00:00"), utc("2024-03-11T17:00:00")))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Status != timecharge.StatusPending {
		t.Fatalf("unexpected created record %+v", created)
	}
	if client.calls(march) != 2 {
		t.Fatalf("expected period reload after create, got %d list calls", client.calls(march))
	}

	events, err := ctrl.Events(ctx, march)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if countRecord(events, created.ID) != 1 {
		t.Fatalf("expected created record in cache, got %v", events)
	}
	if client.calls(march) != 2 {
		t.Fatalf("expected cached read without another fetch")
	}
	totals, err := ctrl.DayTotals(ctx, utc("2024-03-11T00:00:00"))
	if err != nil {
		t.Fatalf("day totals: %v", err)
	}
	if totals.Regular != 8 {
		t.Fatalf("expected 8 regular hours, got %+v", totals)
	}
}

func TestController_CreateRejectsOverlapWithoutRemoteCall(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("1", "2024-03-11T10:00:00", "2024-03-11T12:00:00", "approved"))
	ctrl := newTestController(client)

	_, err := ctrl.Create(context.Background(), externalRecord(utc("2024-03-11T09:00:00"), utc("2024-03-11T11:00:00")))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !validation.Errors.Has(calendar.RuleOverlap) {
		t.Fatalf("expected overlap rule, got %v", validation.Errors)
	}
	if len(client.charges) != 1 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestController_UpdateAcrossMonthsMovesRecord(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("7", "2024-03-29T09:00:00", "2024-03-29T12:00:00", "pending"))
	ctrl := newTestController(client)
	ctx := context.Background()

	if _, err := ctrl.Events(ctx, march); err != nil {
		t.Fatalf("events march: %v", err)
	}
	if _, err := ctrl.Events(ctx, april); err != nil {
		t.Fatalf("events april: %v", err)
	}

	record, ok := ctrl.Lookup("7")
	if !ok {
		t.Fatalf("expected record 7 to be loaded")
	}
	record.Start = utc("2024-04-02T09:00:00")
	record.End = utc("2024-04-02T12:00:00")
	if _, err := ctrl.Update(ctx, record); err != nil {
		t.Fatalf("update: %v", err)
	}

	aprilEvents, ok := ctrl.Cache().Get(april)
	if !ok {
		t.Fatalf("expected april to be repopulated")
	}
	if countRecord(aprilEvents.Events, "7") != 1 {
		t.Fatalf("expected record in april, got %v", aprilEvents.Events)
	}

	ctrl.Invalidate(march)
	marchEvents, err := ctrl.Events(ctx, march)
	if err != nil {
		t.Fatalf("events march: %v", err)
	}
	if countRecord(marchEvents, "7") != 0 {
		t.Fatalf("expected record gone from march, got %v", marchEvents)
	}
}

func TestController_RemoteFailureKeepsState(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("1", "2024-03-11T09:00:00", "2024-03-11T11:00:00", "pending"))
	ctrl := newTestController(client)
	ctx := context.Background()

	events, err := ctrl.Events(ctx, march)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	client.failWith = errors.New("503 service unavailable")

	event := eventByRef(t, events, calendar.Whole("1"))
	_, err = ctrl.Drag(ctx, event, event.Start, event.End.Add(time.Hour))
	var remote *RemoteFailure
	if !errors.As(err, &remote) {
		t.Fatalf("expected remote failure, got %v", err)
	}
	if !remote.Suppressed || remote.Op != string(DragResizeEnd) || remote.RecordID != "1" {
		t.Fatalf("unexpected remote failure %+v", remote)
	}

	_, err = ctrl.Update(ctx, event.Record)
	if !errors.As(err, &remote) || remote.Suppressed {
		t.Fatalf("expected unsuppressed remote failure for form submit, got %v", err)
	}

	if client.calls(march) != 1 {
		t.Fatalf("expected no reload after failures, got %d", client.calls(march))
	}
	after, ok := ctrl.Cache().Get(march)
	if !ok || !after.Events[0].End.Equal(event.End) {
		t.Fatalf("expected cached events unchanged")
	}
}

func TestController_DragSplitParts(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("9", "2024-03-11T20:00:00", "2024-03-12T02:00:00", "pending"))
	ctrl := newTestController(client)
	ctx := context.Background()

	events, err := ctrl.Events(ctx, march)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	first := eventByRef(t, events, calendar.Part("9", calendar.PartFirst))
	second := eventByRef(t, events, calendar.Part("9", calendar.PartSecond))

	var rejection *ConflictRejection
	if _, err := ctrl.Drag(ctx, first, first.Start, first.End.Add(-time.Hour)); !errors.As(err, &rejection) {
		t.Fatalf("expected boundary drag to be rejected, got %v", err)
	}

	updated, err := ctrl.Drag(ctx, second, second.Start, utc("2024-03-12T03:00:00"))
	if err != nil {
		t.Fatalf("resize part 2: %v", err)
	}
	if !updated.Start.Equal(utc("2024-03-11T20:00:00")) || !updated.End.Equal(utc("2024-03-12T03:00:00")) {
		t.Fatalf("expected full record interval in payload, got %v..%v", updated.Start, updated.End)
	}

	sent := client.updates[len(client.updates)-1]
	if sent.ID != "9" || sent.StartTime != "2024-03-11T20:00:00" || sent.EndTime != "2024-03-12T03:00:00" {
		t.Fatalf("unexpected payload %+v", sent)
	}
	if sent.StageID != "3" || sent.Activity != "Drafting" {
		t.Fatalf("expected reference fields from the event, got %+v", sent)
	}

	reloaded, err := ctrl.Events(ctx, march)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	part2 := eventByRef(t, reloaded, calendar.Part("9", calendar.PartSecond))
	if !part2.End.Equal(utc("2024-03-12T03:00:00")) {
		t.Fatalf("expected reloaded part 2, got %v", part2.End)
	}
}

func TestController_ReadOnlyAndDeleteGates(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("1", "2024-03-11T09:00:00", "2024-03-11T11:00:00", "approved"))
	client.seed(externalCharge("2", "2024-03-12T09:00:00", "2024-03-12T11:00:00", "declined"))
	ctrl := newTestController(client)
	ctx := context.Background()

	events, err := ctrl.Events(ctx, march)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	approved := eventByRef(t, events, calendar.Whole("1"))
	if _, err := ctrl.Drag(ctx, approved, approved.Start, approved.End.Add(time.Hour)); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected read-only drag error, got %v", err)
	}
	if _, err := ctrl.Update(ctx, approved.Record); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected read-only update error, got %v", err)
	}
	if err := ctrl.Delete(ctx, "1"); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("expected approved delete to be refused, got %v", err)
	}
	if err := ctrl.Delete(ctx, "2"); err != nil {
		t.Fatalf("expected declined delete to pass: %v", err)
	}
	if _, ok := ctrl.Lookup("2"); ok {
		t.Fatalf("expected deleted record to be gone after reload")
	}
}

func TestController_Reopen(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("1", "2024-03-11T09:00:00", "2024-03-11T11:00:00", "approved"))
	client.seed(externalCharge("2", "2024-03-12T09:00:00", "2024-03-12T11:00:00", "pending"))
	ctrl := newTestController(client)
	ctx := context.Background()

	if _, err := ctrl.Events(ctx, march); err != nil {
		t.Fatalf("events: %v", err)
	}
	if err := ctrl.Reopen(ctx, []string{"2"}); !errors.Is(err, timecharge.ErrInvalidTransition) {
		t.Fatalf("expected pending reopen to fail, got %v", err)
	}
	if err := ctrl.Reopen(ctx, []string{"1"}); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	record, ok := ctrl.Lookup("1")
	if !ok || record.Status != timecharge.StatusPending || !record.Editable() {
		t.Fatalf("expected reopened record to be pending, got %+v", record)
	}
}

func TestController_MutationInFlightGuard(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(newFakeClient())
	release, err := ctrl.begin("5")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := ctrl.begin("5"); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected in-flight error, got %v", err)
	}
	if err := ctrl.Delete(context.Background(), "5"); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected delete to be refused while in flight, got %v", err)
	}
	release()
	if _, err := ctrl.begin("5"); err != nil {
		t.Fatalf("expected guard released: %v", err)
	}
}

func TestClassifyDrag(t *testing.T) {
	t.Parallel()

	start := utc("2024-03-11T09:00:00")
	end := utc("2024-03-11T11:00:00")
	cases := []struct {
		newStart, newEnd time.Time
		want             DragKind
	}{
		{newStart: start, newEnd: end, want: DragUnchanged},
		{newStart: start.Add(30 * time.Minute), newEnd: end.Add(30 * time.Minute), want: DragMove},
		{newStart: start.Add(30 * time.Minute), newEnd: end, want: DragResizeStart},
		{newStart: start, newEnd: end.Add(time.Hour), want: DragResizeEnd},
		{newStart: start.Add(time.Hour), newEnd: end.Add(30 * time.Minute), want: DragReshape},
	}
	for _, tc := range cases {
		if got := ClassifyDrag(start, end, tc.newStart, tc.newEnd); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestController_UpdateChecksStatusWithEmptyCache(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("1", "2024-03-11T09:00:00", "2024-03-11T11:00:00", "approved"))
	ctrl := newTestController(client)

	record := externalRecord(utc("2024-03-11T09:00:00"), utc("2024-03-11T12:00:00"))
	record.ID = "1"
	if _, err := ctrl.Update(context.Background(), record); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	if len(client.updates) != 0 {
		t.Fatalf("expected no remote update, got %d", len(client.updates))
	}
	if client.charges["1"].EndTime != "2024-03-11T11:00:00" {
		t.Fatalf("expected approved charge untouched, got %+v", client.charges["1"])
	}
}

func TestController_DeleteRequiresResolvedRecord(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("2", "2024-04-03T09:00:00", "2024-04-03T11:00:00", "approved"))
	client.seed(externalCharge("3", "2024-04-04T09:00:00", "2024-04-04T11:00:00", "pending"))
	ctrl := newTestController(client)
	ctx := context.Background()

	if err := ctrl.Delete(ctx, "2"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected unresolved delete to be refused, got %v", err)
	}
	if err := ctrl.Delete(ctx, "2", april); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("expected approved delete to be refused, got %v", err)
	}
	if _, ok := client.charges["2"]; !ok {
		t.Fatalf("expected approved charge to stay")
	}

	if err := ctrl.Delete(ctx, "3", april); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	if _, ok := client.charges["3"]; ok {
		t.Fatalf("expected pending charge removed")
	}
}

func TestController_ReopenTakesInFlightGuard(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.seed(externalCharge("1", "2024-03-11T09:00:00", "2024-03-11T11:00:00", "approved"))
	ctrl := newTestController(client)

	release, err := ctrl.begin("1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := ctrl.Reopen(context.Background(), []string{"2", "1"}); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected reopen to be refused while in flight, got %v", err)
	}
	if _, err := ctrl.begin("2"); err != nil {
		t.Fatalf("expected partial guards released: %v", err)
	}
	release()

	if err := ctrl.Reopen(context.Background(), []string{"1"}); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if client.charges["1"].Status != "pending" {
		t.Fatalf("expected reopened charge, got %q", client.charges["1"].Status)
	}
}

func TestGateDrag_RejectsReshapeAndSplitBoundary(t *testing.T) {
	t.Parallel()

	whole := calendar.Materialize(mustRecord(t, externalCharge("1", "2024-03-11T09:00:00", "2024-03-11T11:00:00", "pending")), nil)[0]
	parts := calendar.Materialize(mustRecord(t, externalCharge("9", "2024-03-11T20:00:00", "2024-03-12T02:00:00", "pending")), nil)

	cases := []struct {
		name             string
		event            calendar.Event
		newStart, newEnd time.Time
		reason           string
	}{
		{name: "both edges with a new duration", event: whole, newStart: utc("2024-03-11T10:00:00"), newEnd: utc("2024-03-11T11:30:00"), reason: MessageReshape},
		{name: "first part midnight edge", event: parts[0], newStart: parts[0].Start, newEnd: utc("2024-03-11T22:00:00"), reason: MessageSplitBoundary},
		{name: "second part midnight edge", event: parts[1], newStart: utc("2024-03-12T01:00:00"), newEnd: parts[1].End, reason: MessageSplitBoundary},
	}
	for _, tc := range cases {
		_, err := GateDrag(tc.event, tc.newStart, tc.newEnd)
		var rejection *ConflictRejection
		if !errors.As(err, &rejection) || rejection.Reason != tc.reason {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.reason, err)
		}
	}

	if kind, err := GateDrag(parts[1], parts[1].Start, utc("2024-03-12T03:00:00")); err != nil || kind != DragResizeEnd {
		t.Fatalf("expected outer edge resize to pass, got %s %v", kind, err)
	}
}

func mustRecord(t *testing.T, charge chargeapi.TimeCharge) timecharge.Record {
	t.Helper()
	record, err := charge.Record(time.UTC)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	return record
}
