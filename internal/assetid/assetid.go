package assetid

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	prefix        = "ast"
	maxHintLength = 20
	randomLength  = 4
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	idShape         = regexp.MustCompile(`^ast_(?:[a-z0-9]+(?:_[a-z0-9]+)*_)?[0-9]{13}_[a-z0-9]{4}$`)
)

// Generate выдаёт новый идентификатор ассета вида
// ast_{semantic}_{timestampMillis}_{random4}. Семантическая часть необязательна:
// если после нормализации подсказки ничего не осталось, она опускается.
// Идентификатор не криптографический — вероятность коллизии на масштабах
// системы считается пренебрежимой.
func Generate(semanticHint string) string {
	ts := time.Now().UnixMilli()
	suffix := randomSuffix()

	hint := normalizeHint(semanticHint)
	if hint == "" {
		return fmt.Sprintf("%s_%013d_%s", prefix, ts, suffix)
	}
	return fmt.Sprintf("%s_%s_%013d_%s", prefix, hint, ts, suffix)
}

// normalizeHint приводит подсказку к нижнему регистру, схлопывает любые
// последовательности не-[a-z0-9] символов в один underscore, срезает
// underscore по краям и обрезает результат до 20 символов
func normalizeHint(hint string) string {
	s := strings.ToLower(hint)
	s = nonAlphanumeric.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxHintLength {
		// Обрезка может оставить underscore на конце — убираем его,
		// иначе итоговый идентификатор не пройдёт собственную проверку формы
		s = strings.TrimRight(s[:maxHintLength], "_")
	}
	return s
}

func randomSuffix() string {
	b := make([]byte, randomLength)
	for i := range b {
		b[i] = base36[rand.Intn(len(base36))]
	}
	return string(b)
}

// IsValid проверяет форму идентификатора:
// ast_(опциональная_семантика_)?{13 цифр}_{4 base36 символа}
func IsValid(id string) bool {
	return idShape.MatchString(id)
}

// SemanticName возвращает семантическую часть идентификатора. Разбор
// позиционный: подходит только идентификатор ровно из четырёх сегментов,
// поэтому подсказка из нескольких слов (несколько сегментов после
// нормализации) даёт пустой результат.
func SemanticName(id string) string {
	parts := strings.Split(id, "_")
	if len(parts) != 4 {
		return ""
	}
	if parts[0] != prefix {
		return ""
	}
	if len(parts[2]) != 13 {
		return ""
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return ""
	}
	if len(parts[3]) != randomLength {
		return ""
	}
	return parts[1]
}

// Timestamp извлекает момент генерации идентификатора. Временная метка —
// всегда предпоследний сегмент, случайный хвост — последний.
func Timestamp(id string) (time.Time, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 || parts[0] != prefix {
		return time.Time{}, false
	}
	raw := parts[len(parts)-2]
	if len(raw) != 13 {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
