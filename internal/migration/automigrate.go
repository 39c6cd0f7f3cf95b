package migration

import (
	customerdomain "github.com/smallbiznis/autotrade/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/autotrade/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
	vehicledomain "github.com/smallbiznis/autotrade/internal/vehicle/domain"
	"gorm.io/gorm"
)

// AutoMigrate creates the schema from the models. It backs sqlite and mysql
// development databases and tests; postgres goes through RunMigrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&customerdomain.Customer{},
		&vehicledomain.Vehicle{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&paymentdomain.Payment{},
	)
}
