package agenda_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/timothywashburn/pat-client/agenda"
	"github.com/timothywashburn/pat-client/api"
)

type testConfig struct {
	url string
}

func (c testConfig) GetAPIURL() string                { return c.url }
func (c testConfig) GetRequestTimeout() time.Duration { return 5 * time.Second }

type staticTokens string

func (s staticTokens) AccessToken() string { return string(s) }

func newClient(t *testing.T, router *mux.Router, token string) *agenda.Client {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	apiClient, err := api.New(testConfig{url: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	client, err := agenda.NewClient(apiClient, staticTokens(token), zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestListTasks(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"tasks": []map[string]any{
					{"id": "t1", "name": "write report", "completed": false},
					{"id": "t2", "name": "call dentist", "completed": true, "notes": "ask about friday"},
				},
			},
		})
	}).Methods(http.MethodGet)

	client := newClient(t, router, "T1")

	tasks, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "write report", tasks[0].Name)
	require.True(t, tasks[0].Due().IsZero())
	require.True(t, tasks[1].Completed)
}

func TestCreateTask(t *testing.T) {
	due := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)

	router := mux.NewRouter()
	router.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "write report", body["name"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"task": map[string]any{"id": "t1", "name": "write report", "dueDate": due.Format(time.RFC3339), "completed": false},
			},
		})
	}).Methods(http.MethodPost)

	client := newClient(t, router, "T1")

	task, err := client.Create(context.Background(), agenda.NewTask{Name: "write report"}.DueOn(due))
	require.NoError(t, err)
	require.Equal(t, "t1", task.ID)
	require.True(t, due.Equal(task.Due()))
}

func TestDeleteTask(t *testing.T) {
	deleted := make(chan string, 1)
	router := mux.NewRouter()
	router.HandleFunc("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted <- mux.Vars(r)["id"]
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}).Methods(http.MethodDelete)

	client := newClient(t, router, "T1")

	require.NoError(t, client.Delete(context.Background(), "t1"))
	require.Equal(t, "t1", <-deleted)
}

func TestRequiresSession(t *testing.T) {
	client := newClient(t, mux.NewRouter(), "")

	_, err := client.List(context.Background())
	require.ErrorIs(t, err, api.ErrNoSession)

	_, err = client.Create(context.Background(), agenda.NewTask{Name: "x"})
	require.ErrorIs(t, err, api.ErrNoSession)
}
