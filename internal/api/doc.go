// Package api はプロフィールAPIのHTTPサーバーを提供する。
//
// /v1/users/me 配下のルートはすべてベアラートークンによる認証を必要とし、
// 認証ゲートが組み立てた識別レコードのサブジェクトIDをキーとする
// 1件のプロフィールドキュメントだけを扱う。クライアントが送った値を
// ドキュメントのキーとして使うことはない。
//
// レスポンスはresponseパッケージのエンベロープ形式で返す。
package api

//go:generate swag init --dir ../.. --generalInfo internal/api/server.go --output ../../docs --outputTypes go --exclude _examples
