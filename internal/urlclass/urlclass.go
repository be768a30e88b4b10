// Пакет urlclass — определение сервиса по URL.
// Чистая функция без состояния: упорядоченный список паттернов,
// каждый заякорен на начало строки и нечувствителен к регистру.
package urlclass

import (
	"regexp"
	"strings"
)

// ServiceType — тип музыкального сервиса.
type ServiceType string

const (
	// ServiceQobuz — qobuz.com / play.qobuz.com / open.qobuz.com.
	ServiceQobuz ServiceType = "qobuz"
	// ServiceYouTube — youtube.com / youtu.be / music.youtube.com.
	ServiceYouTube ServiceType = "youtube"
	// ServiceSpotify — open.spotify.com.
	ServiceSpotify ServiceType = "spotify"
	// ServiceUnknown — URL не распознан.
	ServiceUnknown ServiceType = "unknown"
)

// servicePattern — один сервис и его URL-паттерны.
// Паттерны разных сервисов не пересекаются по построению,
// поэтому порядок влияет только на читаемость.
type servicePattern struct {
	service  ServiceType
	patterns []*regexp.Regexp
}

var patterns = []servicePattern{
	{
		service: ServiceQobuz,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^https?://(?:www\.)?(?:play\.)?qobuz\.com/`),
			regexp.MustCompile(`(?i)^https?://open\.qobuz\.com/`),
		},
	},
	{
		service: ServiceYouTube,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/watch\?v=`),
			regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/playlist\?list=`),
			regexp.MustCompile(`(?i)^https?://youtu\.be/`),
			regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/shorts/`),
			regexp.MustCompile(`(?i)^https?://music\.youtube\.com/`),
		},
	},
	{
		service: ServiceSpotify,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^https?://open\.spotify\.com/`),
		},
	},
}

// Classify определяет сервис по URL. Тотальная функция:
// для нераспознанных строк возвращает ServiceUnknown.
func Classify(url string) ServiceType {
	url = strings.TrimSpace(url)

	for _, sp := range patterns {
		for _, re := range sp.patterns {
			if re.MatchString(url) {
				return sp.service
			}
		}
	}

	return ServiceUnknown
}

// IsSupported сообщает, распознан ли URL каким-либо сервисом.
func IsSupported(url string) bool {
	return Classify(url) != ServiceUnknown
}

// ServiceName возвращает отображаемое имя сервиса.
func ServiceName(s ServiceType) string {
	switch s {
	case ServiceQobuz:
		return "Qobuz"
	case ServiceYouTube:
		return "YouTube"
	case ServiceSpotify:
		return "Spotify"
	default:
		return "Unknown"
	}
}
