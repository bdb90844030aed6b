package textutil

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys double as the English text.
const (
	MsgCouponNotFound      = "Coupon code not found."
	MsgCouponInactive      = "This coupon is not active."
	MsgCouponExpired       = "This coupon has expired."
	MsgCouponUsageLimit    = "This coupon has reached its usage limit."
	MsgCouponMinimumNotMet = "A minimum order of %s is required for this coupon."
	MsgCouponApplied       = "Coupon applied: %s off."
)

func init() {
	for key, text := range map[string]string{
		MsgCouponNotFound:      "Kupon kodu bulunamadı.",
		MsgCouponInactive:      "Bu kupon aktif değil.",
		MsgCouponExpired:       "Bu kuponun süresi dolmuş.",
		MsgCouponUsageLimit:    "Bu kupon kullanım limitine ulaştı.",
		MsgCouponMinimumNotMet: "Bu kupon için minimum sipariş tutarı %s.",
		MsgCouponApplied:       "Kupon uygulandı: %s indirim.",
	} {
		_ = message.SetString(language.Turkish, key, text)
	}
}

// Text renders a message key in the store locale.
func (l *Localizer) Text(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}
