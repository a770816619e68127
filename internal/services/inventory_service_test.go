package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"example.com/backstage/services/fulfillment/internal/models"
)

func newInventoryService(materials *MockRawMaterialStore, usages *MockUsageStore) *InventoryService {
	return &InventoryService{
		materials: materials,
		usages:    usages,
		txManager: passthroughTxManager{},
	}
}

func TestDeductClampsAtZero(t *testing.T) {
	materials := new(MockRawMaterialStore)
	service := newInventoryService(materials, new(MockUsageStore))

	material := &models.RawMaterial{ID: uuid.New(), Name: "flour", Stock: 3}
	materials.On("UpdateStock", mock.Anything, material.ID, 0.0).Return(nil)

	err := service.Deduct(context.Background(), material, 5)

	require.NoError(t, err)
	require.Equal(t, 0.0, material.Stock)
	materials.AssertExpectations(t)
}

func TestDeductNormalPath(t *testing.T) {
	materials := new(MockRawMaterialStore)
	service := newInventoryService(materials, new(MockUsageStore))

	material := &models.RawMaterial{ID: uuid.New(), Name: "flour", Stock: 10}
	materials.On("UpdateStock", mock.Anything, material.ID, 6.0).Return(nil)

	err := service.Deduct(context.Background(), material, 4)

	require.NoError(t, err)
	require.Equal(t, 6.0, material.Stock)
	materials.AssertExpectations(t)
}

func TestRecordUsageDeductsAndAppends(t *testing.T) {
	materials := new(MockRawMaterialStore)
	usages := new(MockUsageStore)
	service := newInventoryService(materials, usages)

	materialID := uuid.New()
	materials.On("GetByIDForUpdate", mock.Anything, materialID).
		Return(&models.RawMaterial{ID: materialID, Name: "sugar", Stock: 10}, nil)
	materials.On("UpdateStock", mock.Anything, materialID, 7.0).Return(nil)
	usages.On("Create", mock.Anything, mock.AnythingOfType("*models.RawMaterialUsage")).Return(nil)

	usage, err := service.RecordUsage(context.Background(), UsageInput{
		RawMaterialID: materialID,
		Quantity:      3,
		Notes:         "spillage",
		CreatedBy:     "ops",
	})

	require.NoError(t, err)
	require.Equal(t, 3.0, usage.QuantityUsed)
	require.Nil(t, usage.OrderID)
	materials.AssertExpectations(t)
	usages.AssertExpectations(t)
}

func TestRecordUsageRejectsNonPositiveQuantity(t *testing.T) {
	service := newInventoryService(new(MockRawMaterialStore), new(MockUsageStore))

	_, err := service.RecordUsage(context.Background(), UsageInput{
		RawMaterialID: uuid.New(),
		Quantity:      0,
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestDeleteUsageRestoresExactQuantity(t *testing.T) {
	materials := new(MockRawMaterialStore)
	usages := new(MockUsageStore)
	service := newInventoryService(materials, usages)

	materialID := uuid.New()
	usageID := uuid.New()

	usages.On("GetByID", mock.Anything, usageID).Return(&models.RawMaterialUsage{
		ID:            usageID,
		RawMaterialID: materialID,
		QuantityUsed:  2.5,
	}, nil)
	materials.On("GetByIDForUpdate", mock.Anything, materialID).
		Return(&models.RawMaterial{ID: materialID, Stock: 4}, nil)
	materials.On("UpdateStock", mock.Anything, materialID, 6.5).Return(nil)
	usages.On("Delete", mock.Anything, usageID).Return(nil)

	err := service.DeleteUsage(context.Background(), usageID)

	require.NoError(t, err)
	materials.AssertExpectations(t)
	usages.AssertExpectations(t)
}

func TestDeleteUsageNotFound(t *testing.T) {
	usages := new(MockUsageStore)
	service := newInventoryService(new(MockRawMaterialStore), usages)

	usageID := uuid.New()
	usages.On("GetByID", mock.Anything, usageID).Return(nil, gorm.ErrRecordNotFound)

	err := service.DeleteUsage(context.Background(), usageID)

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestCheckAvailability(t *testing.T) {
	materials := new(MockRawMaterialStore)
	service := newInventoryService(materials, new(MockUsageStore))

	materialID := uuid.New()
	materials.On("GetByID", mock.Anything, materialID).
		Return(&models.RawMaterial{ID: materialID, Name: "flour", Stock: 5}, nil)

	availability, err := service.CheckAvailability(context.Background(), materialID, 8)

	require.NoError(t, err)
	require.False(t, availability.Sufficient)
	require.Equal(t, 3.0, availability.Shortage)
	require.Equal(t, 5.0, availability.Available)
}

func TestLowStockAlerts(t *testing.T) {
	materials := new(MockRawMaterialStore)
	service := newInventoryService(materials, new(MockUsageStore))

	materials.On("ListBelowLowerLimit", mock.Anything).Return([]models.RawMaterial{
		{ID: uuid.New(), Name: "flour", Stock: 1, LowerLimit: 5},
	}, nil)

	low, err := service.LowStockAlerts(context.Background())

	require.NoError(t, err)
	require.Len(t, low, 1)
}
