package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusAwaitingPayment = "AWAITING_PAYMENT_VERIFICATION"
	OrderStatusPackaging       = "PACKAGING"
	OrderStatusReadyForPickup  = "READY_FOR_PICKUP"
	OrderStatusShipped         = "SHIPPED"
	OrderStatusCancelled       = "CANCELLED"
)

// ── Group B: Fixed kinds (CHECK constrained in DB) ──

const (
	OrderTypeInStore = "IN_STORE"
	OrderTypeOnline  = "ONLINE"
)

const (
	DeliveryMethodPickup          = "PICKUP"
	DeliveryMethodDelivery        = "DELIVERY"
	DeliveryMethodNationalCarrier = "NATIONAL_CARRIER"
)

const (
	PaymentKindCash     = "CASH"
	PaymentKindCard     = "CARD"
	PaymentKindTransfer = "TRANSFER"
	PaymentKindMobile   = "MOBILE"
)

const (
	UserRoleAdmin    = "ADMIN"
	UserRoleStaff    = "STAFF"
	UserRoleCustomer = "CUSTOMER"
)

// ── Group C: Computed labels (never persisted) ──

const (
	AvailabilityInStock    = "IN_STOCK"
	AvailabilityLowStock   = "LOW_STOCK"
	AvailabilityOutOfStock = "OUT_OF_STOCK"
)

// LowStockThreshold is the stock level below which a product is
// reported as LOW_STOCK instead of IN_STOCK.
const LowStockThreshold = 5

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusAwaitingPayment, OrderStatusPackaging,
		OrderStatusReadyForPickup, OrderStatusShipped, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidOrderType reports whether s is a known order type.
func ValidOrderType(s string) bool {
	switch s {
	case OrderTypeInStore, OrderTypeOnline:
		return true
	}
	return false
}

// ValidDeliveryMethod reports whether s is a known delivery method.
func ValidDeliveryMethod(s string) bool {
	switch s {
	case DeliveryMethodPickup, DeliveryMethodDelivery, DeliveryMethodNationalCarrier:
		return true
	}
	return false
}

// ValidPaymentKind reports whether s is a known payment method kind.
func ValidPaymentKind(s string) bool {
	switch s {
	case PaymentKindCash, PaymentKindCard, PaymentKindTransfer, PaymentKindMobile:
		return true
	}
	return false
}

// ValidUserRole reports whether s is a known user role.
func ValidUserRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleStaff, UserRoleCustomer:
		return true
	}
	return false
}

// Availability maps a stock level to its storefront label.
func Availability(stock int32) string {
	switch {
	case stock >= LowStockThreshold:
		return AvailabilityInStock
	case stock > 0:
		return AvailabilityLowStock
	}
	return AvailabilityOutOfStock
}
