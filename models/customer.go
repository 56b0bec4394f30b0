package models

// Customer is the AR counterparty. Email is what the reconciliation scorer
// compares against a payment signal's payer email.
type Customer struct {
	Id          uint   `json:"id" gorm:"primaryKey"`
	CompanyName string `json:"company_name" gorm:"not null;unique"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Zip         string `json:"zip"`
	UID         string `json:"uid"`
	Email       string `json:"email" gorm:"unique;not null"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Active      bool   `json:"-"`
}
