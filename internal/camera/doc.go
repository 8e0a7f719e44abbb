// Package camera キャプチャデバイスからのMJPEG配信の中核を担う
//
// # 責務
// - キャプチャデバイスの列挙（インデックスの試し開き）
// - ストリーミングセッションのライフサイクル管理
// - フレームの取得・JPEG圧縮・マルチパート区切りへの包装
// - あらゆる終了経路でのデバイス解放の保証
//
// # 仕様
// - Backend: デバイスを開く手段の抽象。gocv(OpenCV)による実装とテスト用の
//   モックを持つ。バックエンドヒントは起動時に一度だけ解決され、
//   列挙とストリーミングの両方へ注入される（Windowsはdshow、他はany）
// - ProbeDiscovery: [0, maxIndex)を昇順で試し開きし、開けたものだけを返す。
//   結果はスナップショットであり、キャッシュも再試行もしない
// - Pipeline: リクエストごとに作られる使い捨ての構成束。
//   OpenStreamがセッションを開始し、CaptureFrameが単発取得を行う
// - Stream: チャンクの遅延シーケンス。チャンネルのクローズは
//   デバイス解放の完了を意味する
// - 同一インデックスへの同時セッションは調停しない。同時に開けるかどうかは
//   デバイスドライバの挙動に委ねる
//
// # 前提要件
//   - OpenCV 4.x: gocvのビルドと実行に必要
//     https://gocv.io/getting-started/ の手順でインストールする
//   - カメラへのアクセス権限（Linuxではvideoグループへの参加）
//     sudo usermod -a -G video $USER
package camera
