package policy

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicies(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	parent := int64(1)
	rows := pgxmock.NewRows([]string{"id", "kind", "pattern", "profile", "params", "priority", "parent_id"}).
		AddRow(int64(1), Kind("url"), `wiley\.com`, Profile("api"), []byte(`{"browserHtml":"true"}`), 2, (*int64)(nil)).
		AddRow(int64(2), Kind("url"), `wiley\.com`, Profile("proxy"), []byte(nil), 1, &parent).
		AddRow(int64(3), Kind("doi"), `^10\.1088/`, Profile("api"), []byte(nil), 1, (*int64)(nil))

	mock.ExpectQuery(`SELECT id, kind, pattern, profile, params, priority, parent_id FROM fetch_policies`).
		WillReturnRows(rows)

	policies, err := Load(context.Background(), mock, "")
	require.NoError(t, err)
	require.Len(t, policies, 3)

	require.Equal(t, map[string]string{"browserHtml": "true"}, policies[0].Params)
	require.Nil(t, policies[0].ParentID)
	require.NotNil(t, policies[1].ParentID)
	require.Equal(t, int64(1), *policies[1].ParentID)
	require.True(t, policies[2].Matches("10.1088/1475-7516/2010/04/014"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPoliciesBadPattern(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "kind", "pattern", "profile", "params", "priority", "parent_id"}).
		AddRow(int64(1), Kind("url"), `([`, Profile("api"), []byte(nil), 1, (*int64)(nil))

	mock.ExpectQuery(`SELECT id, kind, pattern, profile, params, priority, parent_id FROM fetch_policies`).
		WillReturnRows(rows)

	_, err = Load(context.Background(), mock, "fetch_policies")
	require.Error(t, err)
	require.Contains(t, err.Error(), "compile policy")
}

func TestLoadPoliciesRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = Load(context.Background(), mock, "fetch; drop table")
	require.Error(t, err)
}
