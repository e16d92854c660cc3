package shared

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	t.Run("SameTenantAllowed", func(t *testing.T) {
		actor := Actor{TenantID: tenantA, Role: RoleEmployee, Name: "Marco"}
		err := Authorize(actor, tenantA, ActionWriteDraft)
		assert.NoError(t, err)
	})

	t.Run("ForeignTenantRejected", func(t *testing.T) {
		actor := Actor{TenantID: tenantA, Role: RoleOwner, Name: "Ana"}
		err := Authorize(actor, tenantB, ActionReadTransactions)
		assert.ErrorIs(t, err, ErrTenantMismatch{})
	})

	t.Run("MissingTenantFailsClosed", func(t *testing.T) {
		actor := Actor{Role: RoleOwner}
		err := Authorize(actor, tenantA, ActionReadTransactions)
		assert.ErrorIs(t, err, ErrTenantMismatch{})

		err = Authorize(Actor{TenantID: tenantA, Role: RoleOwner}, uuid.Nil, ActionReadTransactions)
		assert.ErrorIs(t, err, ErrTenantMismatch{})
	})

	t.Run("OwnerOnlyActionRejectsEmployee", func(t *testing.T) {
		actor := Actor{TenantID: tenantA, Role: RoleEmployee, Name: "Marco"}
		err := Authorize(actor, tenantA, ActionCompleteTransaction)
		assert.ErrorIs(t, err, ErrPermissionDenied{})
	})

	t.Run("OwnerOnlyActionAllowsOwner", func(t *testing.T) {
		actor := Actor{TenantID: tenantA, Role: RoleOwner, Name: "Ana"}
		err := Authorize(actor, tenantA, ActionCompleteTransaction)
		assert.NoError(t, err)
	})

	t.Run("TenantCheckPrecedesRoleCheck", func(t *testing.T) {
		// A correct owner-role actor for tenant A must still be rejected
		// when targeting tenant B.
		actor := Actor{TenantID: tenantA, Role: RoleOwner}
		err := Authorize(actor, tenantB, ActionCompleteTransaction)
		assert.ErrorIs(t, err, ErrTenantMismatch{})
	})
}
