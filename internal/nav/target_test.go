package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTabAliases(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"backup", "maintenance-and-backups"},
		{"Backups", "maintenance-and-backups"},
		{"config", "configuration"},
		{"Configuration", "configuration"},
		{"monitoring", "monitoring"},
		{"", ""},
		{"Some Custom Tab", "some-custom-tab"},
	}
	for _, tt := range tests {
		got := Target{Service: "rds", Tab: tt.in}.Normalize()
		assert.Equal(t, tt.want, got.Tab, tt.in)
	}
}

func TestNormalizeDecodesEntities(t *testing.T) {
	got := Target{
		Service:  "RDS",
		Resource: "demo&#45;cluster",
		Tab:      "Maintenance &amp; backups",
		Region:   "US-EAST-1",
	}.Normalize()

	assert.Equal(t, "rds", got.Service)
	assert.Equal(t, "demo-cluster", got.Resource)
	assert.Equal(t, "us-east-1", got.Region)
	// "maintenance & backups" is not a registered alias; it slugifies.
	assert.Equal(t, "maintenance-&-backups", got.Tab)
}

func TestNormalizeIdempotent(t *testing.T) {
	once := Target{Service: "RDS", Tab: "backup", Region: "us-east-1"}.Normalize()
	twice := once.Normalize()
	assert.Equal(t, once, twice)
}

func TestDescribe(t *testing.T) {
	t1 := Target{Service: "rds", Resource: "demo-cluster", Tab: "configuration", Region: "us-east-1"}
	assert.Equal(t, "rds/demo-cluster#configuration (us-east-1)", t1.Describe())

	t2 := Target{Service: "s3", Region: "eu-west-1"}
	assert.Equal(t, "s3 (eu-west-1)", t2.Describe())
}
