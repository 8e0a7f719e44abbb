// Package server は、HTTPサーバーとストリーミング配信を管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// MJPEG/WebSocketストリーミング、静的ファイルの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - デバイス一覧・状態確認などのJSON API
//   - multipart/x-mixed-replace によるMJPEG配信
//   - gorilla/websocket による生JPEGフレーム配信
//   - 閲覧ページ（HTML）の配信
//
// 仕様:
//   - ルーティングとミドルウェアはgin-gonic/ginを使用
//   - ストリーミング応答はチャンクごとにフラッシュする
//   - 書き込みタイムアウトは無効化し、接続はクライアント切断まで維持
//   - ストリーミングセッションはリクエストごとに独立しており、
//     同一デバイスへの同時接続の調停はドライバーに委ねる
package server
