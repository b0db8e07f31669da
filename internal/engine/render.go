package engine

import (
	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

// Notification literals. The product ships in French only; these are not an
// i18n surface.
const (
	titleNewMessage      = "Nouveau message"
	titleNewApplication  = "Nouvelle candidature"
	titleRecruiterIntro  = "Un recruteur vous contacte"
	titleProfileReminder = "Completez votre profil"

	bodyApplicationSuffix   = " a postule a votre offre"
	bodyRecruiterSuffix     = " souhaite vous contacter"
	bodyProfileReminder     = "Votre profil est incomplet. Completez-le pour plus de visibilite !"
	fallbackUserLabel       = "Utilisateur"
	fallbackCompanyLabel    = "Entreprise"
	clickActionOpenChat     = "OPEN_CHAT"
	clickActionOpenProfile  = "OPEN_PROFILE"
	messagePreviewLimit     = 80
	messagePreviewEllipsis  = "..."
)

// renderNewMessage builds the notification for a chat message. Content is
// truncated to 80 characters with an ellipsis suffix.
func renderNewMessage(senderName, content, conversationID string) notify.Message {
	return notify.Message{
		Title: titleNewMessage,
		Body:  senderName + " : " + truncate(content, messagePreviewLimit),
		Data: map[string]string{
			"type":            string(notify.KindNewMessage),
			"conversation_id": conversationID,
			"click_action":    clickActionOpenChat,
		},
	}
}

// renderNewConversation selects between the application and general-contact
// variants based on the conversation's context field.
func renderNewConversation(senderName, context, conversationID string) notify.Message {
	title := titleRecruiterIntro
	body := senderName + bodyRecruiterSuffix
	if context == "application" || context == "postuler" {
		title = titleNewApplication
		body = senderName + bodyApplicationSuffix
	}
	return notify.Message{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":            string(notify.KindNewConversation),
			"conversation_id": conversationID,
			"click_action":    clickActionOpenChat,
		},
	}
}

// renderProfileReminder is fixed text; the recipient's role rides in data so
// the app can open the right profile editor.
func renderProfileReminder(role notify.Role) notify.Message {
	return notify.Message{
		Title: titleProfileReminder,
		Body:  bodyProfileReminder,
		Data: map[string]string{
			"type":         string(notify.KindProfileReminder),
			"user_role":    string(role),
			"click_action": clickActionOpenProfile,
		},
	}
}

// truncate limits s to a number of characters, not bytes, so accented
// content keeps its full preview and is never cut mid-rune.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + messagePreviewEllipsis
}
