package source

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/types"
)

func TestPostgresExtract(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(postgresTablesQuery).WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name"}).
		AddRow("public", "customers").
		AddRow("audit", "events"))
	mock.ExpectQuery(postgresColumnsQuery).WithArgs("public", "customers").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "integer").
			AddRow("email", "text"))
	mock.ExpectQuery(`SELECT * FROM "public"."customers" LIMIT 10`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "email"}).AddRow(int64(7), "ada@example.com"))

	p := NewPostgres(db, config.PostgresConfig{Schemas: []string{"public"}}, 0, nil)
	assert.Equal(t, "postgres", p.Name())

	items, err := p.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, types.DialectPostgres, item.Dialect)
	assert.Equal(t, "public", item.Database)
	assert.Equal(t, "customers", item.Table)
	assert.Equal(t, []string{"id", "email"}, item.ColumnNames())
	assert.Equal(t, [][]any{{int64(7), "ada@example.com"}}, item.SampleData)
	assert.NoError(t, mock.ExpectationsWereMet())
}
