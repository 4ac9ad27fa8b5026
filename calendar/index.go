package calendar

import "chargecal/timecharge"

// Index resolves event refs back to their owning records.
type Index struct {
	records map[string]timecharge.Record
}

func NewIndex(events []Event) *Index {
	index := &Index{records: make(map[string]timecharge.Record, len(events))}
	for _, event := range events {
		if event.Type == TypeHoliday {
			continue
		}
		index.records[event.OriginalID] = event.Record
	}
	return index
}

func (i *Index) Resolve(ref EventRef) (timecharge.Record, bool) {
	return i.Record(ref.RecordID)
}

func (i *Index) Record(id string) (timecharge.Record, bool) {
	if i == nil {
		return timecharge.Record{}, false
	}
	record, ok := i.records[id]
	return record, ok
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.records)
}
