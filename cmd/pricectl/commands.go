package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"autoprice/internal/client"
	"autoprice/internal/common"
	"autoprice/internal/features"
	"autoprice/internal/ml"
	"autoprice/internal/storage"
)

func defaultBundleDir() string {
	if v := os.Getenv(common.EnvBundleDir); v != "" {
		return v
	}
	return common.DefaultBundleDir
}

// localService loads a bundle (and optional reference dataset) without metrics.
func localService(bundleDir, referencePath string) (*ml.Service, error) {
	bundle, err := ml.LoadBundle(bundleDir)
	if err != nil {
		return nil, err
	}
	var ref *ml.Reference
	if referencePath != "" {
		ref, err = ml.LoadReference(referencePath, features.CategoricalColumns())
		if err != nil {
			return nil, err
		}
	}
	return ml.NewService(bundle, ref, nil, ml.ServiceConfig{})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runVerify(args []string) error {
	fs, logLevel := newFlagSet("verify")
	bundleDir := fs.String("bundle", defaultBundleDir(), "Artifact bundle directory")
	referencePath := fs.String("reference", os.Getenv(common.EnvReferencePath), "Optional reference CSV")
	fs.Parse(args)
	if err := setupLogging(*logLevel); err != nil {
		return err
	}

	svc, err := localService(*bundleDir, *referencePath)
	if err != nil {
		return err
	}
	b := svc.Bundle()
	stats := b.Stats()

	fmt.Println("=== Bundle ===")
	fmt.Printf("Directory:   %s\n", *bundleDir)
	fmt.Printf("Model type:  %s\n", b.ModelType())
	fmt.Printf("Features:    %d\n", len(b.FeatureOrder()))
	fmt.Printf("Train score: %.4f\n", stats.TrainScore)
	fmt.Printf("Test score:  %.4f\n", stats.TestScore)
	for _, col := range features.CategoricalColumns() {
		fmt.Printf("Encoder %-16s %d classes\n", col+":", b.Encoder().Size(col))
	}

	res := svc.Predict(context.Background(), features.Payload{})
	if !res.Success {
		return fmt.Errorf("default prediction failed: %s", res.Error)
	}
	fmt.Printf("Default car: %.2f %s\n", *res.PredictedPrice, res.Currency)
	if len(res.Fallbacks) > 0 {
		fmt.Printf("Warning: defaults fell back for %s\n", strings.Join(res.Fallbacks, ", "))
	}
	return nil
}

// readPayload takes the payload from -data or, when empty, from stdin.
func readPayload(data string) ([]byte, error) {
	if data != "" {
		return []byte(data), nil
	}
	return io.ReadAll(os.Stdin)
}

func decodeLocal(body []byte) (features.Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var p features.Payload
	if err := dec.Decode(&p); err != nil || p == nil {
		return nil, fmt.Errorf("payload must be a JSON object")
	}
	return p, nil
}

func runPredict(args []string) error {
	fs, logLevel := newFlagSet("predict")
	bundleDir := fs.String("bundle", defaultBundleDir(), "Artifact bundle directory (local mode)")
	server := fs.String("server", "", "Prediction server base URL; empty predicts locally")
	data := fs.String("data", "", "JSON payload; read from stdin when empty")
	timeout := fs.Duration("timeout", common.DefaultRequestTimeout, "Request timeout")
	fs.Parse(args)
	if err := setupLogging(*logLevel); err != nil {
		return err
	}

	body, err := readPayload(*data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var res ml.PredictionResult
	if *server != "" {
		res, err = client.NewREST(*server, *timeout).Predict(ctx, json.RawMessage(body))
		if err != nil {
			return err
		}
	} else {
		p, err := decodeLocal(body)
		if err != nil {
			return err
		}
		svc, err := localService(*bundleDir, "")
		if err != nil {
			return err
		}
		res = svc.Predict(ctx, p)
	}

	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

func runStats(args []string) error {
	fs, logLevel := newFlagSet("stats")
	bundleDir := fs.String("bundle", defaultBundleDir(), "Artifact bundle directory (local mode)")
	server := fs.String("server", "", "Prediction server base URL; empty reads the bundle")
	fs.Parse(args)
	if err := setupLogging(*logLevel); err != nil {
		return err
	}

	if *server != "" {
		stats, err := client.NewREST(*server, 0).Stats(context.Background())
		if err != nil {
			return err
		}
		return printJSON(stats)
	}
	svc, err := localService(*bundleDir, "")
	if err != nil {
		return err
	}
	return printJSON(svc.Stats())
}

func runOptions(args []string) error {
	fs, logLevel := newFlagSet("options")
	bundleDir := fs.String("bundle", defaultBundleDir(), "Artifact bundle directory (local mode)")
	referencePath := fs.String("reference", os.Getenv(common.EnvReferencePath), "Optional reference CSV (local mode)")
	server := fs.String("server", "", "Prediction server base URL; empty reads the bundle")
	fs.Parse(args)
	if err := setupLogging(*logLevel); err != nil {
		return err
	}

	if *server != "" {
		opts, err := client.NewREST(*server, 0).Options(context.Background())
		if err != nil {
			return err
		}
		return printJSON(opts)
	}
	svc, err := localService(*bundleDir, *referencePath)
	if err != nil {
		return err
	}
	return printJSON(svc.Options())
}

func runStream(args []string) error {
	fs, logLevel := newFlagSet("stream")
	wsURL := fs.String("url", "ws://localhost:5000/api/ws/predict", "Websocket prediction endpoint")
	timeout := fs.Duration("timeout", 10*time.Second, "Per-message round trip timeout")
	fs.Parse(args)
	if err := setupLogging(*logLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	payloads := make(chan any)
	results := make(chan ml.PredictionResult, 16)
	streamErr := make(chan error, 1)

	go func() {
		streamErr <- client.NewWS(*wsURL, *timeout).Stream(ctx, payloads, results)
		close(results)
	}()

	go func() {
		defer close(payloads)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), int(common.MaxWSReadLimit))
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case payloads <- append([]byte(nil), line...):
			case <-ctx.Done():
				return
			}
		}
	}()

	out := json.NewEncoder(os.Stdout)
	for res := range results {
		if err := out.Encode(res); err != nil {
			return err
		}
	}
	return <-streamErr
}

func runHistory(args []string) error {
	fs, logLevel := newFlagSet("history")
	dataPath := fs.String("data", os.Getenv(common.EnvDataPath), "Data directory holding "+storage.DBFile)
	since := fs.Duration("since", 0, "Only records newer than this; 0 lists the most recent")
	limit := fs.Int("limit", 20, "Maximum records when -since is not set")
	fs.Parse(args)
	if err := setupLogging(*logLevel); err != nil {
		return err
	}
	if *dataPath == "" {
		return errors.New("-data or DATA_PATH is required")
	}

	store, err := storage.OpenReadOnly(filepath.Join(*dataPath, storage.DBFile))
	if err != nil {
		return err
	}
	defer store.Close()

	var records []storage.PredictionRecord
	if *since > 0 {
		now := time.Now()
		records, err = store.GetPredictions(now.Add(-*since), now)
	} else {
		records, err = store.Recent(*limit)
	}
	if err != nil {
		return err
	}

	total, err := store.Count()
	if err != nil {
		return err
	}

	fmt.Printf("%d of %d records\n", len(records), total)
	for _, r := range records {
		outcome := r.Error
		if r.Success && r.PredictedPrice != nil {
			outcome = fmt.Sprintf("%.2f %s", *r.PredictedPrice, common.Currency)
		}
		fallbacks := ""
		if len(r.Fallbacks) > 0 {
			fallbacks = " fallbacks=" + strings.Join(r.Fallbacks, ",")
		}
		fmt.Printf("%s  %-4s %s  %s%s\n", r.Timestamp.Format(time.RFC3339), r.Source, r.RequestID, outcome, fallbacks)
	}
	return nil
}
