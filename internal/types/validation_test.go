package types

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSRFBlockedCIDRs_Parse(t *testing.T) {
	for _, cidr := range SSRFBlockedCIDRs {
		_, _, err := net.ParseCIDR(cidr)
		require.NoError(t, err, "cidr %q", cidr)
	}
}

func TestSSRFBlockedCIDRs_ContainsMetadataRange(t *testing.T) {
	assert.Contains(t, SSRFBlockedCIDRs, "169.254.0.0/16")
	assert.Contains(t, SSRFBlockedCIDRs, "127.0.0.0/8")
	assert.Contains(t, SSRFBlockedCIDRs, "::1/128")
}
