package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVehicleSignature(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
	}{
		{
			name:        "full signature",
			description: "A white Toyota Camry parked in the driveway.",
			want:        "white-toyota-camry",
		},
		{
			name:        "grey normalized to gray",
			description: "A grey Honda Civic drives past the camera.",
			want:        "gray-honda-civic",
		},
		{
			name:        "chevy normalized to chevrolet",
			description: "A red Chevy Silverado pulls into the garage.",
			want:        "red-chevrolet-silverado",
		},
		{
			name:        "color only",
			description: "A black sedan leaves quickly.",
			want:        "black",
		},
		{
			name:        "brand only",
			description: "A Tesla is charging by the side gate.",
			want:        "tesla",
		},
		{
			name:        "brand followed by generic word has no model",
			description: "A blue Ford truck idles on the street.",
			want:        "blue-ford",
		},
		{
			name:        "no vehicle vocabulary",
			description: "A person walks up to the porch.",
			want:        "",
		},
		{
			name:        "empty description",
			description: "",
			want:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVehicleSignature(tt.description))
		})
	}
}
