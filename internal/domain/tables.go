package domain

var Tables = []interface{}{
	&User{},
	&Product{},
	&Order{},
	&OrderItem{},
	&AuditLog{},
}
