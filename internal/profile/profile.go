// Package profile is the static role lookup consulted at query time.
package profile

import "github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"

var policies = map[models.UserRole]string{
	models.RolePremium:    "Cliente premium: massima priorità, tono formale e proattivo, offri assistenza dedicata.",
	models.RoleRegistered: "Cliente registrato: tono cordiale, suggerisci le risorse self-service disponibili.",
	models.RoleOccasional: "Cliente occasionale: tono semplice e accessibile, invita alla registrazione quando utile.",
}

const defaultPolicy = "Cliente generico: tono cortese e professionale."

// PolicyFor returns the behavior policy for a role, read-only at request
// time. Unknown roles get the generic policy.
func PolicyFor(role models.UserRole) string {
	if policy, ok := policies[role]; ok {
		return policy
	}
	return defaultPolicy
}
