// Package logx configures gymwatch's structured logging.
//
// Logger is a small value type on top of zerolog:
//   - console output stays readable (short timestamp + file:line caller)
//   - file output is JSON
//   - an optional Telegram sink forwards warnings to an operator chat
//     (min level + token bucket, never blocks the caller)
package logx
