package urlclass

import "testing"

// TestClassify проверяет определение сервиса по URL для всех паттернов.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want ServiceType
	}{
		// Qobuz
		{"qobuz базовый", "https://www.qobuz.com/album/xyz", ServiceQobuz},
		{"qobuz без www", "https://qobuz.com/album/xyz", ServiceQobuz},
		{"qobuz play", "https://play.qobuz.com/album/xyz", ServiceQobuz},
		{"qobuz open", "https://open.qobuz.com/album/xyz", ServiceQobuz},
		{"qobuz http", "http://qobuz.com/album/xyz", ServiceQobuz},

		// YouTube
		{"youtube watch", "https://www.youtube.com/watch?v=abc123", ServiceYouTube},
		{"youtube watch без www", "https://youtube.com/watch?v=abc123", ServiceYouTube},
		{"youtube playlist", "https://www.youtube.com/playlist?list=PL123", ServiceYouTube},
		{"youtu.be короткий", "https://youtu.be/abc123", ServiceYouTube},
		{"youtube shorts", "https://www.youtube.com/shorts/abc123", ServiceYouTube},
		{"youtube music", "https://music.youtube.com/watch?v=abc123", ServiceYouTube},

		// Spotify
		{"spotify track", "https://open.spotify.com/track/xyz", ServiceSpotify},
		{"spotify album", "https://open.spotify.com/album/xyz", ServiceSpotify},

		// Нечувствительность к регистру и пробелы
		{"регистр", "HTTPS://OPEN.SPOTIFY.COM/track/xyz", ServiceSpotify},
		{"ведущие пробелы", "  https://youtu.be/abc123  ", ServiceYouTube},

		// Unknown
		{"пустая строка", "", ServiceUnknown},
		{"не URL", "hello world", ServiceUnknown},
		{"неизвестный сервис", "https://soundcloud.com/artist/track", ServiceUnknown},
		{"похожий домен", "https://notqobuz.com/album/xyz", ServiceUnknown},
		{"youtube без схемы", "youtube.com/watch?v=abc", ServiceUnknown},
		{"паттерн в середине строки", "see https://youtu.be/abc", ServiceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.url)
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, ожидалось %s", tt.url, got, tt.want)
			}
		})
	}
}

// TestClassify_Deterministic проверяет детерминированность классификатора.
func TestClassify_Deterministic(t *testing.T) {
	url := "https://play.qobuz.com/album/xyz"
	first := Classify(url)
	for i := 0; i < 100; i++ {
		if got := Classify(url); got != first {
			t.Fatalf("недетерминированный результат: %s != %s", got, first)
		}
	}
}

// TestIsSupported проверяет предикат поддержки URL.
func TestIsSupported(t *testing.T) {
	if !IsSupported("https://youtu.be/abc") {
		t.Error("youtu.be должен поддерживаться")
	}
	if IsSupported("https://example.com/") {
		t.Error("example.com не должен поддерживаться")
	}
}

// TestServiceName проверяет отображаемые имена сервисов.
func TestServiceName(t *testing.T) {
	tests := map[ServiceType]string{
		ServiceQobuz:   "Qobuz",
		ServiceYouTube: "YouTube",
		ServiceSpotify: "Spotify",
		ServiceUnknown: "Unknown",
	}
	for svc, want := range tests {
		if got := ServiceName(svc); got != want {
			t.Errorf("ServiceName(%s) = %q, ожидалось %q", svc, got, want)
		}
	}
}
