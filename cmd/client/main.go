package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gitlab.com/dirk.krummacker/signature-builder/internal/model"
)

// extractResponse is either a record or an error, as sent by the extraction endpoint.
type extractResponse struct {
	Data  *model.ContactRecord `json:"data,omitempty"`
	Error string               `json:"error,omitempty"`
	Raw   string               `json:"raw,omitempty"`
}

// Usage example on the command line:
// > go run ./cmd/client "John Smith, Senior Engineer, john@acme.com, +61 400 111 222"
// > pbpaste | go run ./cmd/client --repeat 10
func main() {
	var serverURL string
	var repeat int
	cmd := &cobra.Command{
		Use:           "client [text...]",
		Short:         "Send text to the extraction endpoint and print the contact record",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if repeat < 1 {
				return fmt.Errorf("repeat must be at least 1, got %d", repeat)
			}
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			requestURL := strings.TrimSuffix(serverURL, "/") + "/api/extract"
			return extractAndPrint(cmd.OutOrStdout(), requestURL, text, repeat)
		},
	}
	cmd.Flags().StringVarP(&serverURL, "url", "u", "http://localhost:8080", "base URL of the service")
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "number of requests, the average latency is printed when > 1")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// readText joins the arguments, or reads standard input when there are none.
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("could not read standard input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no text given")
	}
	return text, nil
}

func extractAndPrint(out io.Writer, requestURL string, text string, repeat int) error {
	jsonBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	var response extractResponse
	var status int
	var duration int64
	for i := 0; i < repeat; i++ {
		resBody, code, d, err := sendRequest(http.MethodPost, requestURL, bytes.NewReader(jsonBody))
		if err != nil {
			return err
		}
		duration += d
		status = code
		response = extractResponse{}
		if err := json.Unmarshal(resBody, &response); err != nil {
			return fmt.Errorf("could not unmarshal JSON (HTTP %d): %w", code, err)
		}
	}
	if response.Data == nil {
		if response.Raw != "" {
			return fmt.Errorf("HTTP %d: %s: %s", status, response.Error, response.Raw)
		}
		return fmt.Errorf("HTTP %d: %s", status, response.Error)
	}

	pretty, err := json.MarshalIndent(response.Data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(pretty))
	if repeat > 1 {
		fmt.Fprintf(out, "%d requests, average %d ms\n", repeat, duration/int64(repeat*1000000))
	}
	return nil
}

// sendRequest executes one HTTP request and returns the body, status code and duration in
// nanoseconds.
func sendRequest(method string, requestURL string, bodyReader io.Reader) ([]byte, int, int64, error) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("error making http request: %w", err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("could not read response body: %w", err)
	}
	after := time.Now().UnixNano()
	return resBody, res.StatusCode, after - before, nil
}
