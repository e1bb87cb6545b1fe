package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/liars-games/liarsdice/internal/logging"
	"github.com/liars-games/liarsdice/internal/shutdown"
)

type Config struct {
	Url string `envconfig:"LIARS_HP_URL" default:"http://localhost:3002/health"`
}

type OkResponse struct {
	Status string `json:"status"`
}

func main() {
	flag.Parse()
	ctx, cancel := shutdown.New()
	logger := logging.FromContext(ctx)
	defer cancel()
	config := Config{}
	if err := envconfig.Process("", &config); err != nil {
		logger.Fatalf("processing the config: %v", err)
	}

	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			DisableCompression:    true,
			IdleConnTimeout:       5 * time.Minute,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		},
	}

	resp, err := client.Get(config.Url)
	if err != nil {
		logger.Fatalf("client get: %v", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		bytes, err := io.ReadAll(resp.Body)
		if err != nil {
			logger.Fatalf("read all body bytes: %v", err)
		}
		var ok OkResponse
		if err := json.Unmarshal(bytes, &ok); err != nil {
			logger.Fatalf("body unmarshal: %v", err)
		}
		_, _ = fmt.Fprint(os.Stdout, ok.Status)
		_, _ = fmt.Fprint(os.Stdout, "\n")
		return
	}

	_, _ = fmt.Fprint(os.Stdout, strconv.Itoa(resp.StatusCode))
	_, _ = fmt.Fprint(os.Stdout, "\n")
	os.Exit(1)
}
