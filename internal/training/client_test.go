package training

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dyluth/assay/pkg/bioactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret"

// newTestServer serves a minimal model API for project "mindsdb" and
// rejects requests without the bearer token.
func newTestServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var uploads []string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects/mindsdb/models", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `[{"name":"ki_model","status":"Training"},{"name":"other","status":"complete"}]`)
		case http.MethodPost:
			var body createModelBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "standard_value", body.Model.Predict)
			assert.Equal(t, "files.bioactivity_model_dataset", body.Model.TrainingData)
			json.NewEncoder(w).Encode(map[string]string{"name": body.Model.Name, "status": "generating"})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/projects/mindsdb/models/ki_model", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `{"name":"ki_model","status":"error","error":"no numeric columns"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/api/projects/mindsdb/models/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"model missing does not exist"}`)
	})
	mux.HandleFunc("/api/projects/mindsdb/models/ki_model/predict", func(w http.ResponseWriter, r *http.Request) {
		var body predictBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		out := make([]map[string]interface{}, len(body.Data))
		for i, row := range body.Data {
			out[i] = map[string]interface{}{"standard_value": row["FP0"] / 2, "standard_value_confidence": 0.9}
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/api/files/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		uploads = append(uploads, header.Filename+":"+string(data))
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"invalid token"}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &uploads
}

func TestHTTPClient(t *testing.T) {
	srv, uploads := newTestServer(t)
	client, err := NewHTTPClient(srv.URL+"/", "mindsdb", testToken, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("list models normalizes status", func(t *testing.T) {
		models, err := client.ListModels(ctx)
		require.NoError(t, err)
		require.Len(t, models, 2)
		assert.Equal(t, StatusTraining, models[0].Status)
	})

	t.Run("get model carries error detail", func(t *testing.T) {
		m, err := client.GetModel(ctx, "ki_model")
		require.NoError(t, err)
		assert.Equal(t, StatusError, m.Status)
		assert.Equal(t, "no numeric columns", m.Error)
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := client.GetModel(ctx, "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, bioactivity.ErrModelNotFound))
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("create model", func(t *testing.T) {
		m, err := client.CreateModel(ctx, CreateRequest{
			Name:         "new_model",
			TargetColumn: "standard_value",
			Dataset:      DatasetRef{Name: "bioactivity_model_dataset"},
		})
		require.NoError(t, err)
		assert.Equal(t, "new_model", m.Name)
		assert.Equal(t, StatusGenerating, m.Status)
	})

	t.Run("drop model", func(t *testing.T) {
		assert.NoError(t, client.DropModel(ctx, "ki_model"))
	})

	t.Run("upload dataset", func(t *testing.T) {
		ref, err := client.UploadDataset(ctx, "bioactivity_model_dataset", strings.NewReader("FP0,standard_value\n1,0.5\n"))
		require.NoError(t, err)
		assert.Equal(t, "bioactivity_model_dataset", ref.Name)
		require.Len(t, *uploads, 1)
		assert.Equal(t, "bioactivity_model_dataset.csv:FP0,standard_value\n1,0.5\n", (*uploads)[0])
	})

	t.Run("predict", func(t *testing.T) {
		values, err := client.Predict(ctx, "ki_model", "standard_value", []map[string]float64{{"FP0": 1}, {"FP0": 0}})
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0}, values)
	})

	t.Run("predict with wrong target column", func(t *testing.T) {
		_, err := client.Predict(ctx, "ki_model", "pki", []map[string]float64{{"FP0": 1}})
		assert.True(t, errors.Is(err, bioactivity.ErrRemoteService))
	})
}

func TestHTTPClient_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t)
	client, err := NewHTTPClient(srv.URL, "mindsdb", "wrong", nil)
	require.NoError(t, err)

	_, err = client.ListModels(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, bioactivity.ErrRemoteService))
	assert.Contains(t, err.Error(), "invalid token")
}

func TestNewHTTPClient_Validation(t *testing.T) {
	_, err := NewHTTPClient("not a url", "mindsdb", "", nil)
	assert.True(t, errors.Is(err, bioactivity.ErrConfiguration))

	_, err = NewHTTPClient("http://localhost:47334", "", "", nil)
	assert.True(t, errors.Is(err, bioactivity.ErrConfiguration))
}

func TestOrchestratorOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	client, err := NewHTTPClient(srv.URL, "mindsdb", testToken, nil)
	require.NoError(t, err)

	o, _ := newTestOrchestrator(client, Options{MaxPolls: 3})
	out, err := o.EnsureTrained(context.Background(), "ki_model", DatasetRef{Name: "bioactivity_model_dataset"}, "standard_value")
	require.NoError(t, err)

	// Listed as training, then reported as error on the first poll.
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, "no numeric columns", out.Detail)
	assert.Equal(t, 1, out.Polls)
	assert.False(t, out.Created)
}
