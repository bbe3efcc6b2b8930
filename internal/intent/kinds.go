package intent

// Kind identifies the shape of an intent. The values match the event names
// emitted by storefront views.
type Kind string

// Intent kinds accepted by the bus.
const (
	KindAddItem     Kind = "add-to-cart"
	KindSetQuantity Kind = "update-quantity"
	KindRemoveItem  Kind = "remove-item"
	KindCheckout    Kind = "checkout"
)

// KnownKinds returns the canonical list of supported intent kinds.
func KnownKinds() []Kind {
	return []Kind{
		KindAddItem,
		KindSetQuantity,
		KindRemoveItem,
		KindCheckout,
	}
}

// Mutating reports whether intents of this kind change cart contents.
func (k Kind) Mutating() bool {
	switch k {
	case KindAddItem, KindSetQuantity, KindRemoveItem:
		return true
	default:
		return false
	}
}
