package domain

import "github.com/Lgsalgado/banking-system-backend/pkg/apperror"

var (
	ErrCustomerNotFound        = apperror.New(apperror.KindNotFound, "CUSTOMER_NOT_FOUND", "customer not found")
	ErrNameRequired            = apperror.New(apperror.KindValidation, "NAME_REQUIRED", "name is required")
	ErrIdentificationRequired  = apperror.New(apperror.KindValidation, "IDENTIFICATION_REQUIRED", "identification is required")
	ErrPasswordRequired        = apperror.New(apperror.KindValidation, "PASSWORD_REQUIRED", "password is required")
	ErrDuplicateIdentification = apperror.New(apperror.KindConflict, "DUPLICATE_IDENTIFICATION", "a customer with this identification already exists")
	ErrCustomerBusy            = apperror.New(apperror.KindBusy, "CUSTOMER_BUSY", "customer is being updated, retry the request")

	// ErrDeliveryFailed means the write was committed but the change event was
	// not confirmed by the broker. The resync job republishes it later.
	ErrDeliveryFailed = apperror.New(apperror.KindDelivery, "EVENT_DELIVERY_PENDING", "customer saved, change notification is pending")
)
