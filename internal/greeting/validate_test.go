package greeting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		field   string
		wantErr bool
	}{
		{name: "minimal", req: Request{EventDate: "01.01.2025"}},
		{name: "all enums", req: Request{EventDate: "01.01.2025", EventCategory: ProfessionalHoliday, ClientSegment: SegmentNew, Tone: ToneCreative}},
		{name: "missing date", req: Request{}, field: "EventDate", wantErr: true},
		{name: "unknown segment", req: Request{EventDate: "01.01.2025", ClientSegment: "gold"}, field: "ClientSegment", wantErr: true},
		{name: "unknown tone", req: Request{EventDate: "01.01.2025", Tone: "sarcastic"}, field: "Tone", wantErr: true},
		{name: "unknown category", req: Request{EventDate: "01.01.2025", EventCategory: "halloween"}, field: "EventCategory", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRequest_WithDefaults(t *testing.T) {
	req := Request{EventDate: "01.01.2025"}.WithDefaults()
	assert.Equal(t, SegmentStandard, req.ClientSegment)
	assert.Equal(t, ToneFormal, req.Tone)

	req = Request{EventDate: "01.01.2025", ClientSegment: SegmentVIP, Tone: ToneFriendly}.WithDefaults()
	assert.Equal(t, SegmentVIP, req.ClientSegment)
	assert.Equal(t, ToneFriendly, req.Tone)
}

func TestCollaboratorError_Unwrap(t *testing.T) {
	inner := errors.New("503 service unavailable")
	err := &CollaboratorError{Op: "generate text", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "generate text: collaborator failure: 503 service unavailable", err.Error())
}
