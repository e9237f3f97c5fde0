package clients

type CreateClientRequest struct {
	CompanyName string                 `json:"company_name" validate:"required,max=200"`
	TaxID       *string                `json:"tax_id,omitempty" validate:"omitempty,max=20"`
	Address     *string                `json:"address,omitempty" validate:"omitempty,max=300"`
	City        *string                `json:"city,omitempty" validate:"omitempty,max=120"`
	Notes       *string                `json:"notes,omitempty"`
	Contacts    []CreateContactRequest `json:"contacts,omitempty" validate:"dive"`
}

type CreateContactRequest struct {
	Name  string  `json:"name" validate:"required,max=120"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Role  *string `json:"role,omitempty" validate:"omitempty,max=80"`
}

type UpdateClientRequest struct {
	CompanyName *string `json:"company_name,omitempty" validate:"omitempty,max=200"`
	TaxID       *string `json:"tax_id,omitempty" validate:"omitempty,max=20"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=300"`
	City        *string `json:"city,omitempty" validate:"omitempty,max=120"`
	Notes       *string `json:"notes,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type ListClientsRequest struct {
	Search *string `json:"search,omitempty"`
	Active *bool   `json:"active,omitempty"`
	Limit  int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset int     `json:"offset" validate:"gte=0"`
}
