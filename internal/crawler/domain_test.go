package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainPolicyAllows(t *testing.T) {
	t.Parallel()

	policy := NewDomainPolicy([]string{"Example.com", " .docs.example.org "})

	assert.True(t, policy.Allows("https://example.com/about"))
	assert.True(t, policy.Allows("https://EXAMPLE.COM/"))
	assert.True(t, policy.Allows("https://shop.example.com/cart"), "subdomains are internal")
	assert.True(t, policy.Allows("https://docs.example.org/guide"))
	assert.True(t, policy.Allows("https://v2.docs.example.org/guide"))

	assert.False(t, policy.Allows("https://example.org/"))
	assert.False(t, policy.Allows("https://notexample.com/"), "suffix match requires a dot boundary")
	assert.False(t, policy.Allows("https://example.com.evil.net/"))
	assert.False(t, policy.Allows("not a url at %%"))
	assert.False(t, policy.Allows("/relative"))
}

func TestDomainPolicyEmpty(t *testing.T) {
	t.Parallel()

	policy := NewDomainPolicy(nil)
	assert.False(t, policy.Allows("https://example.com/"))
}
