package slack

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/comoco/mysqldump/jobresult"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify(t *testing.T) {
	var received SlackMessage

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		fmt.Fprintln(w, "done")
	})

	mux.HandleFunc("/failed", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, "invalid_payload")
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	slack := &Slack{
		IncomingWebhook: svr.URL,
	}

	results := make([]*jobresult.JobResult, 0, 2)

	err := slack.Notify(results)
	assert.Nil(t, err)

	results = append(results, &jobresult.JobResult{
		JobName: "success job",
		Elapsed: time.Second,
	})

	results = append(results, &jobresult.JobResult{
		Error:   errors.New("failed dump job"),
		JobName: "failed job",
		Elapsed: time.Second,
	})

	err = slack.Notify(results)
	require.Nil(t, err)
	require.Len(t, received.Blocks, 3)
	assert.Equal(t, "*Mysqldump Results*", received.Blocks[0].Text.Text)
	assert.Equal(t, results[1].ToSlackText(), received.Blocks[2].Text.Text)

	slack.IncomingWebhook = svr.URL + "/failed"

	err = slack.Notify(results)
	assert.ErrorContains(t, err, "invalid_payload")

	slack.IncomingWebhook = "http://127.0.0.1:1"
	assert.Error(t, slack.Notify(results))
}
