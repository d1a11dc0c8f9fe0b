package models

import "time"

// Permission, rol yetkilerini bit flag olarak temsil eder.
//
// Bitfield (bit flag) nedir?
// Her yetkiyi bir bit ile temsil ediyoruz. Böylece tek bir integer'da
// birden fazla yetkiyi saklayabiliriz.
//
// Kontrol: (permissions & PermConnectVoice) != 0 → bu yetki var mı?
// Ekleme: permissions | PermConnectVoice → bu yetkiyi ekle
// Çıkarma: permissions &^ PermConnectVoice → bu yetkiyi kaldır
type Permission int64

const (
	PermConnectVoice Permission = 1 << iota // 1 — iota Go'da auto-increment sabit üretir
	PermSpeak                               // 2 — audio produce
	PermStream                              // 4 — kamera/ekran produce
	PermMoveMembers                         // 8 — kullanıcıyı kanallar arası taşıma
	PermMuteMembers                         // 16 — kullanıcıyı zorla susturma/atma
	PermManageServer                        // 32 — AFK ayarları dahil sunucu ayarları
	PermAdmin                               // 64
)

// PermAll, tüm yetkilerin toplamıdır.
// Yeni permission eklendikçe bu değer güncellenir: (1 << N) - 1
const PermAll Permission = (1 << 7) - 1

// Has, belirli bir yetkinin var olup olmadığını kontrol eder.
func (p Permission) Has(perm Permission) bool {
	// ADMIN yetkisi her şeye izin verir
	if p&PermAdmin != 0 {
		return true
	}
	return p&perm != 0
}

// Role, bir sunucu rolünü temsil eder.
// Kullanıcının efektif yetkisi, sahip olduğu rollerin Permissions
// alanlarının OR'udur.
type Role struct {
	ID          string     `json:"id"`
	ServerID    string     `json:"server_id"`
	Name        string     `json:"name"`
	Position    int        `json:"position"`
	Permissions Permission `json:"permissions"`
	IsDefault   bool       `json:"is_default"` // @everyone — her üyeye uygulanır
	CreatedAt   time.Time  `json:"created_at"`
}
