package repository

import (
	"strings"
	"testing"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildRunListQuery(t *testing.T) {
	query, args := buildRunListQuery(domain.RunFilter{})
	assert.True(t, strings.HasSuffix(query, "ORDER BY created_at DESC LIMIT $1"))
	assert.Equal(t, []interface{}{50}, args)

	query, args = buildRunListQuery(domain.RunFilter{ScenarioHash: "abc", Mode: "JOINT", Limit: 10})
	assert.Contains(t, query, "AND scenario_hash = $1 AND mode = $2")
	assert.True(t, strings.HasSuffix(query, "LIMIT $3"))
	assert.Equal(t, []interface{}{"abc", "joint", 10}, args)

	_, args = buildRunListQuery(domain.RunFilter{Limit: 10_000})
	assert.Equal(t, []interface{}{50}, args)
}
