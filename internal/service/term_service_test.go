package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/repository"
	appErrors "github.com/SatvikPraveen/SmartCampus-sub000/pkg/errors"
)

func TestTermServiceCreateAndGet(t *testing.T) {
	svc := NewTermService(repository.NewTermRepository(), nil, zap.NewNop())
	ctx := context.Background()

	term, err := svc.Create(ctx, CreateTermRequest{Semester: models.SemesterFall, Year: 2026})
	require.NoError(t, err)
	assert.NotEmpty(t, term.ID)

	found, err := svc.Get(ctx, term.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SemesterFall, found.Semester)
	assert.Equal(t, 2026, found.Year)

	_, err = svc.Get(ctx, "ghost")
	assert.Equal(t, "TERM_NOT_FOUND", appErrors.FromError(err).Code)

	_, err = svc.Create(ctx, CreateTermRequest{Semester: "AUTUMN", Year: 2026})
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	assert.Len(t, svc.List(ctx), 1)
}
