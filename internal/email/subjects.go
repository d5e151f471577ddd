package email

const languageSpanish = "spanish"

type subjectPair struct {
	english string
	spanish string
}

func (p subjectPair) forLanguage(lang string) string {
	if lang == languageSpanish {
		return p.spanish
	}
	return p.english
}

var (
	subjectBookingConfirmed = subjectPair{
		english: "Your appointment is booked - %s",
		spanish: "Su cita está reservada - %s",
	}
	subjectBookingCancelled = subjectPair{
		english: "Your appointment has been cancelled - %s",
		spanish: "Su cita ha sido cancelada - %s",
	}
	subjectBookingRescheduled = subjectPair{
		english: "Your appointment has been moved - %s",
		spanish: "Su cita ha sido cambiada - %s",
	}
	subjectBookingReminder = subjectPair{
		english: "Reminder: your appointment tomorrow - %s",
		spanish: "Recordatorio: su cita mañana - %s",
	}
	subjectEstimateLink = subjectPair{
		english: "Your repair estimate %s is ready",
		spanish: "Su presupuesto de reparación %s está listo",
	}
	subjectEstimateResponse = subjectPair{
		english: "We received your response to estimate %s",
		spanish: "Recibimos su respuesta al presupuesto %s",
	}
)

const (
	subjectShopBookingFmt  = "New appointment booked: %s"
	subjectShopEstimateFmt = "Estimate %s response: %s"
)
