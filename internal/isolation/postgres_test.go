package isolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelect_TenantFilterAlwaysPresent(t *testing.T) {
	f, err := scopeFilter(Filter{"title": "go", "id": "c1"}, "T1")
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	q, args := buildSelect(courseSchema, f, FindOptions{Order: &Order{Column: "created_at", Desc: true}, Limit: 10})

	assert.Equal(t,
		`SELECT "id", "tenant_id", "title", "created_at" FROM "courses" WHERE "id" = $1 AND "tenant_id" = $2 AND "title" = $3 ORDER BY "created_at" DESC LIMIT 10`,
		q,
	)
	assert.Equal(t, []any{"c1", "T1", "go"}, args)
}

func TestBuildSelect_NilMatchesNull(t *testing.T) {
	q, args := buildSelect(courseSchema, Filter{"tenant_id": "T1", "title": nil}, FindOptions{})
	assert.Equal(t, `SELECT "id", "tenant_id", "title", "created_at" FROM "courses" WHERE "tenant_id" = $1 AND "title" IS NULL`, q)
	assert.Equal(t, []any{"T1"}, args)
}

func TestBuildUpdate_ScopedByKeyAndTenant(t *testing.T) {
	q, args := buildUpdate(courseSchema, "c1", "T1", course{ID: "c1", TenantID: "T1", Title: "x"})
	assert.Equal(t, `UPDATE "courses" SET "title" = $1, "created_at" = $2 WHERE "id" = $3 AND "tenant_id" = $4`, q)
	assert.Len(t, args, 4)
	assert.Equal(t, "c1", args[2])
	assert.Equal(t, "T1", args[3])
}

func TestBuildDelete(t *testing.T) {
	q, args := buildDelete(courseSchema, Filter{"tenant_id": "T1"})
	assert.Equal(t, `DELETE FROM "courses" WHERE "tenant_id" = $1`, q)
	assert.Equal(t, []any{"T1"}, args)
}
