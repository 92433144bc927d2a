// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// ベアラートークンによる認証、リクエストログ、パニックリカバリ、
// CORS設定など、APIサーバーの全ルートで共通して使用するミドルウェアを含む。
// エラーレスポンスはresponseパッケージのエンベロープで返す。
package middleware
