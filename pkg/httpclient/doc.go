// Package httpclient はAPIサーバーを呼び出すJSON用HTTPクライアントを提供する。
//
// コンテナのヘルスチェックなど、プロセスの外からAPIの状態を確認する際に使用する。
// コンテキストに設定したリクエストIDはX-Request-IDヘッダーで伝播する。
package httpclient
