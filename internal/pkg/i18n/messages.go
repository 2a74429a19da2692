package i18n

// Message keys.
const (
	CommonForbidden    = "common.forbidden"
	CommonUnknown      = "common.unknown"
	CommonNotAvailable = "common.not_available"

	ErrInvalidCredentials     = "errors.invalid_credentials"
	ErrTooManyAttemptsTimed   = "errors.too_many_attempts_timed"
	ErrTooManyAttemptsBlocked = "errors.too_many_attempts_blocked"
	ErrGenericServer          = "errors.generic_server_error"
	ErrUsernameTaken          = "errors.username_taken"
	ErrEmailTaken             = "errors.email_taken"
	ErrCurrentPassword        = "errors.current_password_incorrect"
	ErrPasswordReuse          = "errors.password_reuse"
	ErrPasswordTooShort       = "errors.password_too_short"
	ErrInvalidTheme           = "errors.invalid_theme"
	ErrInvalidLanguage        = "errors.invalid_language"
	ErrRequiredFields         = "errors.required_fields"
	ErrSetupDone              = "errors.setup_done"

	MsgUsernameCurrent      = "messages.username_current"
	MsgUsernameAvailable    = "messages.username_available"
	MsgPasswordUpdated      = "messages.password_updated"
	MsgThemeUpdated         = "messages.theme_updated"
	MsgUserCreated          = "messages.user_created"
	MsgPasswordResetSuccess = "messages.password_reset_success"
	MsgUserDeleted          = "messages.user_deleted"
	MsgDeleteSelfError      = "messages.delete_self_error"
	MsgIPBlocked            = "messages.ip_blocked"
	MsgIPUnblocked          = "messages.ip_unblocked"
	MsgIPInvalid            = "messages.ip_invalid"
)

var french = map[string]string{
	CommonForbidden:    "Accès interdit",
	CommonUnknown:      "Inconnue",
	CommonNotAvailable: "N/A",

	ErrInvalidCredentials:     "Email ou mot de passe incorrect",
	ErrTooManyAttemptsTimed:   "Trop de tentatives. Réessayez dans %d secondes.",
	ErrTooManyAttemptsBlocked: "Trop de tentatives. Compte bloqué pendant %d secondes.",
	ErrGenericServer:          "Erreur interne du serveur",
	ErrUsernameTaken:          "Ce nom d'utilisateur est déjà pris",
	ErrEmailTaken:             "Cet email est déjà utilisé",
	ErrCurrentPassword:        "Le mot de passe actuel est incorrect",
	ErrPasswordReuse:          "Le nouveau mot de passe doit être différent de l'actuel",
	ErrPasswordTooShort:       "Le mot de passe doit contenir au moins %d caractères",
	ErrInvalidTheme:           "Thème invalide",
	ErrInvalidLanguage:        "Langue non prise en charge",
	ErrRequiredFields:         "Tous les champs sont obligatoires",
	ErrSetupDone:              "L'installation est déjà terminée",

	MsgUsernameCurrent:      "C'est votre nom d'utilisateur actuel",
	MsgUsernameAvailable:    "Nom d'utilisateur disponible",
	MsgPasswordUpdated:      "Mot de passe mis à jour",
	MsgThemeUpdated:         "Thème mis à jour",
	MsgUserCreated:          "Utilisateur %s créé !",
	MsgPasswordResetSuccess: "Mot de passe de %s réinitialisé",
	MsgUserDeleted:          "Utilisateur supprimé",
	MsgDeleteSelfError:      "Vous ne pouvez pas supprimer votre propre compte",
	MsgIPBlocked:            "Adresse IP bloquée",
	MsgIPUnblocked:          "Adresse IP débloquée",
	MsgIPInvalid:            "Adresse IP invalide",
}

var english = map[string]string{
	CommonForbidden:    "Forbidden",
	CommonUnknown:      "Unknown",
	CommonNotAvailable: "N/A",

	ErrInvalidCredentials:     "Incorrect email or password",
	ErrTooManyAttemptsTimed:   "Too many attempts. Try again in %d seconds.",
	ErrTooManyAttemptsBlocked: "Too many attempts. Login blocked for %d seconds.",
	ErrGenericServer:          "Internal server error",
	ErrUsernameTaken:          "This username is already taken",
	ErrEmailTaken:             "This email is already in use",
	ErrCurrentPassword:        "Current password is incorrect",
	ErrPasswordReuse:          "The new password must differ from the current one",
	ErrPasswordTooShort:       "Password must be at least %d characters long",
	ErrInvalidTheme:           "Invalid theme",
	ErrInvalidLanguage:        "Unsupported language",
	ErrRequiredFields:         "All fields are required",
	ErrSetupDone:              "Setup has already been completed",

	MsgUsernameCurrent:      "This is your current username",
	MsgUsernameAvailable:    "Username available",
	MsgPasswordUpdated:      "Password updated",
	MsgThemeUpdated:         "Theme updated",
	MsgUserCreated:          "User %s created!",
	MsgPasswordResetSuccess: "Password reset for %s",
	MsgUserDeleted:          "User deleted",
	MsgDeleteSelfError:      "You cannot delete your own account",
	MsgIPBlocked:            "IP address blocked",
	MsgIPUnblocked:          "IP address unblocked",
	MsgIPInvalid:            "Invalid IP address",
}
