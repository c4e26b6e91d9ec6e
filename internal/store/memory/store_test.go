package memory

import (
	"testing"

	"bedrockmate/internal/store"
	"bedrockmate/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}
