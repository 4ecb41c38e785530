// 로그 신호 정규화 로직 정의
// 원본 메시지에서 (component, severity, errorSignature)를 뽑아낸다
//
// 처리 흐름:
//  1. Filter: 에러/경고 키워드 또는 상태코드 휴리스틱 매칭
//  2. Severity: ERROR/EXCEPTION/5xx → ERROR, WARN → WARN, 기본 WARN
//  3. Component: 스트림 ID 경로 세그먼트에서 추출
//  4. Signature: 공통 실패 토큰 패턴 매칭, 실패 시 메시지 앞부분으로 fallback
//
// Signature는 의도적으로 lossy하다. 같은 근본 원인을 공유하는 서로 다른
// 메시지를 하나의 시그니처로 합치는 것이 목적이다.

package service

import (
	"regexp"
	"strings"

	"github.com/pulsewatch/backend/internal/model"
)

const (
	unknownComponent = "unknown-service"

	// fallback 시그니처 길이 (영숫자만 남긴 뒤)
	fallbackSignatureLen = 80
)

// 패턴 순서가 우선순위다: 구체적인 예외 클래스 → 일반 실패 토큰
var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\w+Exception\b`),
	regexp.MustCompile(`(?i)\b\w+Error\b`),
	regexp.MustCompile(`(?i)\bFailed\b`),
	regexp.MustCompile(`(?i)\bTimeout\b`),
	regexp.MustCompile(`\b5\d{2}\b`),
	regexp.MustCompile(`(?i)Connection refused`),
	regexp.MustCompile(`(?i)Out of memory`),
}

var (
	httpServerErrorPattern = regexp.MustCompile(`\b5\d{2}\b`)
	nonAlphanumericPattern = regexp.MustCompile(`[^a-zA-Z0-9 ]+`)
)

// 필터 키워드: 하나라도 포함되면 신호로 취급
var signalKeywords = []string{"error", "exception", "warn", "fail", "timeout", "fatal", "refused"}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// IsSignal - 원본 로그가 에러/경고 신호인지 판단 (필터 단계)
func (n *Normalizer) IsSignal(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range signalKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return httpServerErrorPattern.MatchString(message)
}

// Severity - 필터를 통과한 이벤트는 항상 actionable이므로 기본값은 WARN
func (n *Normalizer) Severity(message string) string {
	upper := strings.ToUpper(message)
	if strings.Contains(upper, "ERROR") || strings.Contains(upper, "EXCEPTION") {
		return model.SeverityError
	}
	if httpServerErrorPattern.MatchString(message) {
		return model.SeverityError
	}
	return model.SeverityWarn
}

// Component - 스트림 ID에서 서비스 이름 추출
// "service"/"-api"/"-app"을 포함한 세그먼트 우선, 없으면 마지막 세그먼트
func (n *Normalizer) Component(streamID string) string {
	if !strings.Contains(streamID, "/") {
		return unknownComponent
	}

	segments := strings.Split(streamID, "/")
	for _, seg := range segments {
		lower := strings.ToLower(seg)
		if strings.Contains(lower, "service") || strings.Contains(lower, "-api") || strings.Contains(lower, "-app") {
			return seg
		}
	}

	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return unknownComponent
}

// Signature - 메시지에서 장애 시그니처 추출
func (n *Normalizer) Signature(message string) string {
	for _, pattern := range signaturePatterns {
		if match := pattern.FindString(message); match != "" {
			return strings.TrimSpace(match)
		}
	}

	// fallback: 영숫자/공백만 남기고 앞부분을 시그니처로 사용
	stripped := nonAlphanumericPattern.ReplaceAllString(message, "")
	stripped = strings.TrimSpace(stripped)
	if len(stripped) > fallbackSignatureLen {
		stripped = stripped[:fallbackSignatureLen]
	}
	if stripped == "" {
		return "unclassified"
	}
	return stripped
}
