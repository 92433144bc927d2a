// Package profile はユーザープロフィールドキュメントのドメインモデルと
// ユースケースを提供する。
//
// プロフィールは認証済みサブジェクトごとに1件だけ存在し、ドキュメントの
// キーは常に識別レコードのサブジェクトIDから導出される。クライアントが
// キーを指定する操作は存在しないため、他のサブジェクトのドキュメントに
// 触れることは構造的にできない。
//
// 主な機能:
//   - プロフィールの取得、作成、部分更新、削除
//   - 設定（preferences）の取得と置き換え
//   - 部分更新パッチの純粋なマージ（Patch.Apply）
package profile
