package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeMoveBlocked(t *testing.T) {
	tests := []struct {
		name     string
		creditID uint
		occupant *DonorCredit
		blocked  bool
	}{
		{"target scope empty", 5, nil, false},
		{"occupant is the credit itself", 5, &DonorCredit{ID: 5}, false},
		{"different row occupies target", 5, &DonorCredit{ID: 9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, scopeMoveBlocked(tt.creditID, tt.occupant))
		})
	}
}
