package confirm

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_admin/internal/events"
	"store_admin/internal/form/mocks"
	"store_admin/internal/gateway"
	"store_admin/internal/models"
	"store_admin/internal/pkg/apierr"
)

func TestConfirm(t *testing.T) {
	coupon := models.Coupon{ID: "42", Code: "SAVE10"}

	tests := []struct {
		name          string
		mutateErr     error
		wantOpen      bool
		wantError     string
		wantPublished int
	}{
		{name: "success closes and refetches", wantPublished: 1},
		{
			name:      "server refusal keeps the dialog open",
			mutateErr: apierr.ValidationErr(200, "In use", nil),
			wantOpen:  true,
			wantError: "In use",
		},
		{
			name:      "network failure keeps the dialog open",
			mutateErr: apierr.NetworkErr(502, nil),
			wantOpen:  true,
			wantError: "Something went wrong. Please try again.",
		},
		{
			name:      "auth failure changes nothing",
			mutateErr: apierr.AuthErr(401),
			wantOpen:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mutator := mocks.NewMockMutator(ctrl)
			bus := events.NewBus()
			refetches := 0
			bus.Subscribe(models.Coupons, func(events.ResourceChanged) { refetches++ })

			mutator.EXPECT().Mutate(gomock.Any(), gateway.Delete(models.Coupons, "42")).
				Return(&gateway.Result{Status: "success"}, tt.mutateErr).Times(1)

			dialog := New(mutator, bus, nil)
			dialog.Open(coupon)
			assert.Equal(t, State{Open: true, Resource: models.Coupons, EntityID: "42", Label: "SAVE10"}, dialog.State())

			err := dialog.Confirm(context.Background())
			if tt.mutateErr == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}

			state := dialog.State()
			assert.Equal(t, tt.wantOpen, state.Open)
			assert.Equal(t, tt.wantError, state.Error)
			assert.False(t, state.Submitting)
			assert.Equal(t, tt.wantPublished, refetches)
		})
	}
}

func TestCancelAndEmptyConfirm(t *testing.T) {
	ctrl := gomock.NewController(t)
	mutator := mocks.NewMockMutator(ctrl)
	dialog := New(mutator, events.NewBus(), nil)

	err := dialog.Confirm(context.Background())
	assert.Equal(t, apierr.ClientInput, apierr.KindOf(err))

	dialog.Open(models.Brand{ID: "3", Name: "Acme"})
	dialog.Cancel()
	assert.Equal(t, State{}, dialog.State())

	err = dialog.Confirm(context.Background())
	assert.Equal(t, apierr.ClientInput, apierr.KindOf(err))
}
