package handler

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"

	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/profile"
	"resume-analyzer-go/internal/storage"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{processor.NewNotFoundError("a.pdf", os.ErrNotExist), consts.StatusNotFound},
		{storage.ErrCandidateNotFound, consts.StatusNotFound},
		{storage.ErrDocumentNotFound, consts.StatusNotFound},
		{processor.NewUnsupportedTypeError("a.txt", ".txt"), consts.StatusUnsupportedMediaType},
		{processor.NewEmptyTextError("a.pdf", 0, nil), consts.StatusUnprocessableEntity},
		{profile.ErrEmptyText, consts.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", processor.ErrInvalidCategory), consts.StatusBadRequest},
		{processor.ErrAsyncDisabled, consts.StatusServiceUnavailable},
		{profile.ErrLLMDisabled, consts.StatusServiceUnavailable},
		{errors.New("boom"), consts.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusForError(tc.err), tc.err.Error())
	}
}
