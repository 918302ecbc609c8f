package frequencia

import (
	"math"
	"strings"

	"github.com/gestaozabele/frequencia/internal/repo"
)

const raioTerraMetros = 6371000.0

// DistanciaMetros calcula a distância de círculo máximo (haversine).
func DistanciaMetros(a, b repo.Localizacao) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * raioTerraMetros * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DentroDaGeofence procura a geofence do campus e confere o raio.
func DentroDaGeofence(geofences []repo.Geofence, campus string, pos repo.Localizacao) bool {
	for _, g := range geofences {
		if !strings.EqualFold(g.Campus, campus) {
			continue
		}
		if DistanciaMetros(repo.Localizacao{Lat: g.Lat, Lng: g.Lng}, pos) <= g.RaioMetros {
			return true
		}
	}
	return false
}

func coordenadasValidas(pos repo.Localizacao) bool {
	return pos.Lat >= -90 && pos.Lat <= 90 && pos.Lng >= -180 && pos.Lng <= 180 &&
		!math.IsNaN(pos.Lat) && !math.IsNaN(pos.Lng)
}

func redePermitida(redes []string, ssid string) bool {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return false
	}
	for _, r := range redes {
		if r == ssid {
			return true
		}
	}
	return false
}
