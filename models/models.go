package models

// All returns every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Table{},
		&TableSession{},
		&MenuCategory{},
		&MenuItem{},
		&CustomizationGroup{},
		&CustomizationOption{},
		&Order{},
		&OrderItem{},
		&PaymentTransaction{},
		&Notification{},
		&CashReconciliation{},
	}
}
