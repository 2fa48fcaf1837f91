package budget

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTemplateService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("program without template gets the default ledger", func(t *testing.T) {
		repo := new(MockTemplateRepository)
		programID := uuid.New()
		repo.On("FindByProgramID", mock.Anything, programID).Return(nil, shared.ErrNotFound)

		resp, err := NewTemplateService(repo, Runtime{}).Get(ctx, programID)
		require.NoError(t, err)
		assert.True(t, resp.IsDefault)
		assert.Equal(t, budget.DefaultExecutionTemplate(), resp.Nodes)
		assert.Nil(t, resp.UpdatedAt)
	})

	t.Run("stored template", func(t *testing.T) {
		repo := new(MockTemplateRepository)
		programID := uuid.New()
		tpl, err := budget.NewExecutionTemplate(programID, ledgerTemplate())
		require.NoError(t, err)
		repo.On("FindByProgramID", mock.Anything, programID).Return(tpl, nil)

		resp, err := NewTemplateService(repo, Runtime{}).Get(ctx, programID)
		require.NoError(t, err)
		assert.False(t, resp.IsDefault)
		assert.Len(t, resp.Nodes, 6)
	})
}

func TestTemplateService_Put(t *testing.T) {
	ctx := context.Background()

	t.Run("first put creates the template", func(t *testing.T) {
		repo := new(MockTemplateRepository)
		programID := uuid.New()
		repo.On("FindByProgramID", mock.Anything, programID).Return(nil, shared.ErrNotFound)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(tpl *budget.ExecutionTemplate) bool {
			return tpl.ProgramID == programID && len(tpl.Nodes) == 6
		})).Return(nil)

		resp, err := NewTemplateService(repo, Runtime{}).Put(ctx, programID, ledgerTemplate())
		require.NoError(t, err)
		assert.Equal(t, programID, resp.ProgramID)
		repo.AssertExpectations(t)
	})

	t.Run("later put replaces the nodes in place", func(t *testing.T) {
		repo := new(MockTemplateRepository)
		programID := uuid.New()
		tpl, err := budget.NewExecutionTemplate(programID, budget.DefaultExecutionTemplate())
		require.NoError(t, err)
		originalID := tpl.ID
		repo.On("FindByProgramID", mock.Anything, programID).Return(tpl, nil)
		repo.On("Save", mock.Anything, tpl).Return(nil)

		resp, err := NewTemplateService(repo, Runtime{}).Put(ctx, programID, ledgerTemplate())
		require.NoError(t, err)
		assert.Len(t, resp.Nodes, 6)
		assert.Equal(t, originalID, tpl.ID)
	})

	t.Run("cyclic template is a schema error and is not stored", func(t *testing.T) {
		repo := new(MockTemplateRepository)
		programID := uuid.New()
		metrics := newRecordingMetrics()
		repo.On("FindByProgramID", mock.Anything, programID).Return(nil, shared.ErrNotFound)

		_, err := NewTemplateService(repo, Runtime{Metrics: metrics}).Put(ctx, programID, []budget.TemplateNode{
			{Code: "a", Title: "Receipts", IsCategory: true},
			{Code: "a1", Title: "Loop one", ParentCode: "a2", IsCategory: true},
			{Code: "a2", Title: "Loop two", ParentCode: "a1", IsCategory: true},
		})

		assert.True(t, shared.IsKind(err, shared.CodeSchema))
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		assert.Equal(t, 1, metrics.count("rejected.template.SCHEMA_ERROR"))
	})
}
