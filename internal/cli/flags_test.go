package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkproc/bulkproc/internal/cli"
	"github.com/bulkproc/bulkproc/internal/entity"
	"github.com/bulkproc/bulkproc/internal/selector"
)

func TestParseIDList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []entity.ID
		wantErr bool
	}{
		{name: "simple list", input: "12,56", want: []entity.ID{12, 56}},
		{name: "whitespace tolerated", input: " 1 , 2 ,3", want: []entity.ID{1, 2, 3}},
		{name: "empty elements dropped", input: "1,,2,", want: []entity.ID{1, 2}},
		{name: "empty string", input: "", want: nil},
		{name: "blank string", input: "   ", want: nil},
		{name: "non-numeric", input: "12,abc", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ids, err := cli.ParseIDList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestParseList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"article", "page"}, cli.ParseList("article, page"))
	assert.Nil(t, cli.ParseList(""))
	assert.Nil(t, cli.ParseList(" , "))
}

func TestParseFieldConditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tuples  []string
		want    []selector.FieldCondition
		wantErr bool
	}{
		{
			name:   "three part tuple",
			tuples: []string{"status|=|1"},
			want:   []selector.FieldCondition{{Field: "status", Operator: "=", Value: "1"}},
		},
		{
			name:   "order preserved",
			tuples: []string{"status|=|1", "rating|>=|4"},
			want: []selector.FieldCondition{
				{Field: "status", Operator: "=", Value: "1"},
				{Field: "rating", Operator: ">=", Value: "4"},
			},
		},
		{
			name:   "four part tuple folds column into field",
			tuples: []string{"field_rating|value|4|>="},
			want:   []selector.FieldCondition{{Field: "field_rating.value", Operator: ">=", Value: "4"}},
		},
		{
			name:   "four part tuple with empty column",
			tuples: []string{"status||1|="},
			want:   []selector.FieldCondition{{Field: "status", Operator: "=", Value: "1"}},
		},
		{
			name:   "empty tuples ignored",
			tuples: []string{"", "status|=|1"},
			want:   []selector.FieldCondition{{Field: "status", Operator: "=", Value: "1"}},
		},
		{name: "too few parts", tuples: []string{"status|="}, wantErr: true},
		{name: "too many parts", tuples: []string{"a|b|c|d|e"}, wantErr: true},
		{name: "empty field", tuples: []string{"|=|1"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conds, err := cli.ParseFieldConditions(tt.tuples)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, conds)
		})
	}
}
