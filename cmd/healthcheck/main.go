// コンテナのヘルスチェック用プローブ。
// 同じコンテナ内のAPIサーバーの/healthを呼び出し、正常なら終了コード0で終了する。
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/wordwise/pkg/httpclient"
)

// healthResponse は/healthのレスポンス。
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	baseURL := os.Getenv("HEALTHCHECK_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:" + port
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = httpclient.WithRequestID(ctx, "healthcheck-"+uuid.NewString())

	var res healthResponse
	if err := httpclient.New(baseURL, 3*time.Second).GetJSON(ctx, "/health", &res); err != nil {
		fmt.Fprintf(os.Stderr, "ヘルスチェックに失敗: %v\n", err)
		os.Exit(1)
	}
	if res.Status != "healthy" {
		fmt.Fprintf(os.Stderr, "APIサーバーが正常ではありません: status=%q\n", res.Status)
		os.Exit(1)
	}
}
