package services

import (
	"sort"

	"github.com/google/uuid"

	"example.com/backstage/services/fulfillment/internal/models"
)

// RequiredMaterials computes the total raw-material demand of a set of order
// items: the sum over items of ingredient quantity-per-unit times item
// quantity. Pure; products must carry their ingredients.
func RequiredMaterials(items []models.OrderItem, products map[uuid.UUID]*models.Product) map[uuid.UUID]float64 {
	required := make(map[uuid.UUID]float64)
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		for _, ingredient := range product.Ingredients {
			required[ingredient.RawMaterialID] += ingredient.QuantityPerUnit * item.Quantity
		}
	}
	return required
}

// SortedMaterialIDs returns the keys of a requirement map in a stable order.
// Confirmation locks raw-material rows in this order so concurrent
// confirmations over overlapping materials cannot deadlock.
func SortedMaterialIDs(required map[uuid.UUID]float64) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// OrderedQuantities sums the ordered quantity per product across an order's
// items.
func OrderedQuantities(items []models.OrderItem) map[uuid.UUID]float64 {
	ordered := make(map[uuid.UUID]float64)
	for _, item := range items {
		ordered[item.ProductID] += item.Quantity
	}
	return ordered
}

// DeliveredQuantities sums the delivered quantity per product across all
// delivery orders of a work order, regardless of delivery status. Cancelled
// and pending deliveries keep their quantities reserved until deleted.
func DeliveredQuantities(deliveryOrders []models.DeliveryOrder) map[uuid.UUID]float64 {
	delivered := make(map[uuid.UUID]float64)
	for _, deliveryOrder := range deliveryOrders {
		for _, item := range deliveryOrder.Items {
			delivered[item.ProductID] += item.Quantity
		}
	}
	return delivered
}

// RemainingQuantity returns ordered minus delivered for one product, never
// negative.
func RemainingQuantity(ordered, delivered map[uuid.UUID]float64, productID uuid.UUID) float64 {
	remaining := ordered[productID] - delivered[productID]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFullyDelivered reports whether every ordered product has been delivered
// in full.
func IsFullyDelivered(ordered, delivered map[uuid.UUID]float64) bool {
	for productID, orderedQty := range ordered {
		if delivered[productID] < orderedQty {
			return false
		}
	}
	return true
}
