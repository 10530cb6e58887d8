package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dyluth/assay/pkg/bioactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChEMBLServer fakes the target search and a two-page activity listing.
func newChEMBLServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/chembl/api/data/target/search.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acetylcholinesterase", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"targets": [
			{"target_chembl_id": "CHEMBL220", "pref_name": "Acetylcholinesterase", "organism": "Homo sapiens"},
			{"target_chembl_id": "CHEMBL4078", "pref_name": "Acetylcholinesterase", "organism": "Torpedo californica"}
		]}`)
	})

	mux.HandleFunc("/chembl/api/data/activity.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "CHEMBL220", q.Get("target_chembl_id"))
		assert.Equal(t, "Ki", q.Get("standard_type"))

		if q.Get("offset") == "" {
			fmt.Fprint(w, `{"activities": [
				{"molecule_chembl_id": "CHEMBL1", "canonical_smiles": "CCO", "standard_value": "5.0", "standard_type": "Ki", "standard_units": "nM"},
				{"molecule_chembl_id": "CHEMBL2", "canonical_smiles": null, "standard_value": 7, "standard_type": "Ki", "standard_units": "nM"}
			], "page_meta": {"next": "/chembl/api/data/activity.json?target_chembl_id=CHEMBL220&standard_type=Ki&offset=2", "total_count": 3}}`)
			return
		}

		fmt.Fprint(w, `{"activities": [
			{"molecule_chembl_id": "CHEMBL3", "canonical_smiles": "CCC", "standard_value": null, "standard_type": "Ki", "standard_units": "nM"}
		], "page_meta": {"next": null, "total_count": 3}}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestChEMBLClient_Fetch(t *testing.T) {
	server := newChEMBLServer(t)

	client, err := NewChEMBLClient(server.URL+"/chembl/api/data", 2, server.Client())
	require.NoError(t, err)

	records, err := client.Fetch(context.Background(), TargetQuery{Keyword: "acetylcholinesterase", ActivityType: "Ki"})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "CHEMBL1", records[0].MoleculeID)
	require.NotNil(t, records[0].StandardValue)
	assert.Equal(t, 5.0, *records[0].StandardValue)

	assert.Nil(t, records[1].CanonicalSmiles)
	require.NotNil(t, records[1].StandardValue)
	assert.Equal(t, 7.0, *records[1].StandardValue)

	assert.Nil(t, records[2].StandardValue)
}

func TestChEMBLClient_TargetSelection(t *testing.T) {
	server := newChEMBLServer(t)
	client, err := NewChEMBLClient(server.URL+"/chembl/api/data", 10, nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), TargetQuery{Keyword: "acetylcholinesterase", Index: 5, ActivityType: "Ki"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, bioactivity.ErrConfiguration))
	assert.Contains(t, err.Error(), "out of range")
}

func TestChEMBLClient_MissingMoleculeID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"activities": [{"canonical_smiles": "CCO", "standard_value": "1"}], "page_meta": {"next": null}}`)
	}))
	defer server.Close()

	client, err := NewChEMBLClient(server.URL, 10, nil)
	require.NoError(t, err)

	_, err = client.FetchActivities(context.Background(), "CHEMBL220", "Ki")
	require.Error(t, err)
	assert.True(t, errors.Is(err, bioactivity.ErrDataQuality))
}

func TestChEMBLClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewChEMBLClient(server.URL, 10, nil)
	require.NoError(t, err)

	_, err = client.SearchTargets(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}

func TestNullableFloat(t *testing.T) {
	tests := []struct {
		input string
		want  *float64
		err   bool
	}{
		{input: `null`, want: nil},
		{input: `""`, want: nil},
		{input: `"12.5"`, want: floatPtr(12.5)},
		{input: `3`, want: floatPtr(3)},
		{input: `"abc"`, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var n nullableFloat
			err := n.UnmarshalJSON([]byte(tt.input))
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.ptr())
		})
	}
}
