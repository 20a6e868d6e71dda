package models

// MeasurementTables lists the models owned by the reporting engine, in migration order
func MeasurementTables() []any {
	return []any{
		&Source{},
		&Trigger{},
		&EventReport{},
		&AggregateReport{},
		&DebugReport{},
		&AggregateEncryptionKey{},
	}
}
