package orders

import "github.com/ariefcatur/go-shop-checkout/internal/apperr"

var (
	ErrCartItemNotFound   = apperr.New(apperr.NotFound, "CART_ITEM_NOT_FOUND", "Cart item not found")
	ErrOutOfStock         = apperr.New(apperr.Invalid, "OUT_OF_STOCK", "SKU is out of stock")
	ErrProductNotFound    = apperr.New(apperr.NotFound, "PRODUCT_NOT_FOUND", "Product not found")
	ErrSKUNotBelongToShop = apperr.New(apperr.Invalid, "SKU_NOT_BELONG_TO_SHOP", "SKU does not belong to shop")
	ErrVersionConflict    = apperr.New(apperr.Conflict, "VERSION_CONFLICT", "Stock changed while placing the order, please retry")

	ErrOrderNotFound     = apperr.New(apperr.NotFound, "ORDER_NOT_FOUND", "Order not found")
	ErrCannotCancelOrder = apperr.New(apperr.Invalid, "CANNOT_CANCEL_ORDER", "Order cannot be cancelled")

	ErrPaymentNotFound                 = apperr.New(apperr.NotFound, "PAYMENT_NOT_FOUND", "Payment not found")
	ErrPaymentAlreadyProcessed         = apperr.New(apperr.Conflict, "PAYMENT_ALREADY_PROCESSED", "Payment already processed")
	ErrPaymentTransactionAlreadyExists = apperr.New(apperr.Conflict, "PAYMENT_TRANSACTION_ALREADY_EXISTS", "Payment transaction already exists")
)
