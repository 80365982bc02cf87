package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// TestFieldConstructors 测试字段构造函数
func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		wantKey string
	}{
		{name: "String字段", field: String("serial", "abc"), wantKey: "serial"},
		{name: "Int字段", field: Int("position", 3), wantKey: "position"},
		{name: "Int64字段", field: Int64("weight", int64(80000)), wantKey: "weight"},
		{name: "Bool字段", field: Bool("operational", true), wantKey: "operational"},
		{name: "Any字段", field: Any("data", map[string]int{"a": 1}), wantKey: "data"},
		{name: "Error字段", field: Error(errors.New("test error")), wantKey: "error"},
		{name: "Duration字段", field: Duration("elapsed", time.Second), wantKey: "elapsed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.wantKey {
				t.Errorf("Key = %s, 期望 %s", tt.field.Key, tt.wantKey)
			}
			if tt.field.Value == nil {
				t.Error("Value为nil")
			}
		})
	}
}

// TestFormatValue 测试值格式化
func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "字符串", value: "test", want: "test"},
		{name: "错误", value: errors.New("error message"), want: "error message"},
		{name: "整数", value: 123, want: "123"},
		{name: "布尔值", value: true, want: "true"},
		{name: "Stringer", value: WarnLevel, want: "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatValue(tt.value)
			if got != tt.want {
				t.Errorf("formatValue() = %s, 期望 %s", got, tt.want)
			}
		})
	}
}

// TestStdLogger_Levels 测试各级别输出
func TestStdLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLoggerWithWriter("test", &buf, DebugLevel)
	ctx := context.Background()

	logger.Debug(ctx, "debug message", String("key", "value"))
	logger.Info(ctx, "info message", Int("count", 123))
	logger.Warn(ctx, "warn message", Bool("critical", true))
	logger.Error(ctx, "error message", Error(errors.New("boom")))

	output := buf.String()
	for _, want := range []string{
		"[DEBUG] test debug message key=value",
		"[INFO] test info message count=123",
		"[WARN] test warn message critical=true",
		"[ERROR] test error message error=boom",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("输出不包含 %q: %s", want, output)
		}
	}
}

// TestStdLogger_LevelFilter 测试级别过滤
func TestStdLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLoggerWithWriter("", &buf, WarnLevel)
	ctx := context.Background()

	logger.Debug(ctx, "hidden debug")
	logger.Info(ctx, "hidden info")
	logger.Warn(ctx, "shown warn")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("低于 Warn 的日志不应输出: %s", output)
	}
	if !strings.Contains(output, "shown warn") {
		t.Error("Warn 日志应输出")
	}
}

// TestStdLogger_WithFields 测试字段继承且互不影响
func TestStdLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewStdLoggerWithWriter("", &buf, InfoLevel)
	child := base.WithFields(String("component", "depot"))
	grandChild := child.WithFields(String("train_id", "t-1"))

	grandChild.Info(context.Background(), "saved")
	base.Info(context.Background(), "plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("期望 2 行输出，实际 %d", len(lines))
	}
	if !strings.Contains(lines[0], "component=depot train_id=t-1") {
		t.Errorf("子 Logger 字段缺失: %s", lines[0])
	}
	if strings.Contains(lines[1], "component=") {
		t.Errorf("父 Logger 不应带子字段: %s", lines[1])
	}
}

// TestParseLevel 测试级别解析
func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, 期望 %v", in, got, want)
		}
	}
}

// TestGlobalLogger 测试全局Logger替换
func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	noop := NewNoopLogger()
	SetLogger(noop)
	if GetLogger() != Logger(noop) {
		t.Error("SetLogger 未生效")
	}
	if noop.WithFields(String("a", "b")) != Logger(noop) {
		t.Error("NoopLogger.WithFields 应返回自身")
	}
}
