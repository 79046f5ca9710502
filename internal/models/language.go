package models

// Language constants
const (
	LangSimplifiedChinese  = "zh_CN"
	LangTraditionalChinese = "zh_TW"
	LangEnglish            = "en"
)

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangEnglish: {
		// Auto-moderation notices
		"automod_deleted":         "⚠️ %s, your message was deleted: **%s**",
		"automod_reason_spam":     "Spam detected",
		"automod_reason_invite":   "Invite link detected",
		"automod_reason_link":     "External link detected",
		"automod_reason_caps":     "Excessive caps",
		"automod_reason_mentions": "Exceeded max mentions (%d)",
		"automod_reason_emojis":   "Exceeded max emojis (%d)",
		"automod_timeout_reason":  "Auto-mod: Spam",

		// Leveling
		"level_up": "🎉 %s, you've leveled up to **Level %d**!",

		// Direct messages to the target of an action
		"dm_warn":    "You have been warned in **%s**\n\n**Reason:** %s",
		"dm_kick":    "You have been kicked from **%s**\n\n**Reason:** %s",
		"dm_ban":     "You have been banned from **%s**\n\n**Reason:** %s",
		"dm_timeout": "You have been timed out in **%s**\n\n**Duration:** %s\n**Reason:** %s",
		"dm_unmute":  "Your timeout in **%s** has been lifted\n\n**Reason:** %s",

		// Mod-log posts
		"modlog_entry":    "**Member:** %s (%s)\n**Action:** %s\n**Moderator:** %s\n**Reason:** %s\n**Case ID:** %d",
		"modlog_duration": "\n**Duration:** %s",
		"modlog_purge":    "**Action:** PURGE\n**Channel:** <#%s>\n**Messages:** %d\n**Moderator:** %s",

		// Command replies
		"reply_success":        "**%s**: %s on **%s**.\n**Case ID:** %d\n**Reason:** %s",
		"reply_partial":        "The action was carried out but could not be fully recorded: %s",
		"reply_no_cases":       "No moderation cases found for this server.",
		"reply_no_user_cases":  "No moderation history found for **%s**.",
		"reply_case_line":      "**Case #%d** - %s\n*User:* %s\n*Moderator:* %s\n*Reason:* %s\n",
		"reply_case_not_found": "Case #%d not found.",
		"reply_settings":       "**Auto-moderation:** %s\n**Leveling:** %s\n**Language:** %s\n**Mod log:** %s",
		"reply_stats":          "**Total cases:** %d\n**Active bans:** %d\n**Warnings:** %d\n**Tracked users:** %d",
		"reply_usage":          "Usage: %s",
		"reply_help":           "Moderation commands (reply to a member's message or pass a user id):\n/warn <reason>\n/kick [reason]\n/ban [reason]\n/timeout <duration> [reason]\n/unmute [reason]\n/unban <user id> [reason]\n/modlogs [user id]\n/case <id>\n/purge <amount> [user id]\n/userinfo [user id]\n\nAdmin commands:\n/automod on|off\n/leveling on|off\n/language en|zh_CN|zh_TW\n/modlog here|off\n/settings\n/stats",
		"state_on":             "on",
		"state_off":            "off",
		"state_unset":          "not set",
		"no_reason":            "No reason provided",
		"reply_purged":         "Deleted **%d** message(s).",
		"reply_purged_user":    "Deleted **%d** message(s) from **%s**.",
		"reply_purge_none":     "No messages found to delete. Messages older than 14 days cannot be bulk deleted.",
		"reply_purge_range":    "Amount must be between %d and %d.",
		"reply_timeout_range":  "Invalid duration. Must be between %s and %s.",
		"reply_user_not_found": "User not found in this server.",
		"reply_userinfo":       "**%s** (%s)\n**Warnings:** %d\n**Kicks:** %d\n**Bans:** %d\n**Timeouts:** %d\n**Level:** %d\n**XP:** %d/%d\n**Messages:** %d",

		// Command menu
		"cmd_desc_warn":     "Warn a member",
		"cmd_desc_kick":     "Kick a member",
		"cmd_desc_ban":      "Ban a member",
		"cmd_desc_timeout":  "Timeout a member",
		"cmd_desc_unmute":   "Lift a member's timeout",
		"cmd_desc_unban":    "Unban a user",
		"cmd_desc_modlogs":  "Show recent moderation cases",
		"cmd_desc_case":     "Show one moderation case",
		"cmd_desc_purge":    "Delete recent messages",
		"cmd_desc_userinfo": "Show a member's record and level",
		"cmd_desc_automod":  "Turn auto-moderation on or off",
		"cmd_desc_leveling": "Turn leveling on or off",
		"cmd_desc_language": "Set the bot language",
		"cmd_desc_modlog":   "Set or clear the mod-log chat",
		"cmd_desc_settings": "Show the group settings",
		"cmd_desc_stats":    "Show moderation statistics",
		"cmd_desc_help":     "Show help",
	},

	LangSimplifiedChinese: {
		"automod_deleted":         "⚠️ %s，你的消息已被删除：**%s**",
		"automod_reason_spam":     "检测到刷屏",
		"automod_reason_invite":   "检测到邀请链接",
		"automod_reason_link":     "检测到外部链接",
		"automod_reason_caps":     "大写字母过多",
		"automod_reason_mentions": "提及人数超过上限 (%d)",
		"automod_reason_emojis":   "表情数量超过上限 (%d)",
		"automod_timeout_reason":  "自动管理：刷屏",

		"level_up": "🎉 %s，你已升到 **%d 级**！",

		"dm_warn":    "你在 **%s** 收到警告\n\n**原因：** %s",
		"dm_kick":    "你已被移出 **%s**\n\n**原因：** %s",
		"dm_ban":     "你已被 **%s** 封禁\n\n**原因：** %s",
		"dm_timeout": "你在 **%s** 被禁言\n\n**时长：** %s\n**原因：** %s",
		"dm_unmute":  "你在 **%s** 的禁言已解除\n\n**原因：** %s",

		"modlog_entry":    "**成员：** %s (%s)\n**操作：** %s\n**管理员：** %s\n**原因：** %s\n**案件编号：** %d",
		"modlog_duration": "\n**时长：** %s",
		"modlog_purge":    "**操作：** PURGE\n**频道：** <#%s>\n**消息数：** %d\n**管理员：** %s",

		"reply_success":        "**%s**：%s 已作用于 **%s**。\n**案件编号：** %d\n**原因：** %s",
		"reply_partial":        "操作已执行，但记录未能完整保存：%s",
		"reply_no_cases":       "本群没有管理记录。",
		"reply_no_user_cases":  "**%s** 没有管理记录。",
		"reply_case_line":      "**案件 #%d** - %s\n*用户：* %s\n*管理员：* %s\n*原因：* %s\n",
		"reply_case_not_found": "未找到案件 #%d。",
		"reply_settings":       "**自动管理：** %s\n**等级系统：** %s\n**语言：** %s\n**管理日志：** %s",
		"reply_stats":          "**案件总数：** %d\n**生效封禁：** %d\n**警告：** %d\n**记录用户：** %d",
		"reply_usage":          "用法：%s",
		"reply_help":           "管理命令（回复成员消息或提供用户 ID）：\n/warn <原因>\n/kick [原因]\n/ban [原因]\n/timeout <时长> [原因]\n/unmute [原因]\n/unban <用户ID> [原因]\n/modlogs [用户ID]\n/case <编号>\n/purge <数量> [用户ID]\n/userinfo [用户ID]\n\n管理员命令：\n/automod on|off\n/leveling on|off\n/language en|zh_CN|zh_TW\n/modlog here|off\n/settings\n/stats",
		"state_on":             "开启",
		"state_off":            "关闭",
		"state_unset":          "未设置",
		"no_reason":            "未提供原因",
		"reply_purged":         "已删除 **%d** 条消息。",
		"reply_purged_user":    "已删除 **%[2]s** 的 **%[1]d** 条消息。",
		"reply_purge_none":     "没有可删除的消息。超过 14 天的消息无法批量删除。",
		"reply_purge_range":    "数量必须在 %d 到 %d 之间。",
		"reply_timeout_range":  "时长无效，必须在 %s 到 %s 之间。",
		"reply_user_not_found": "本群中找不到该用户。",
		"reply_userinfo":       "**%s** (%s)\n**警告：** %d\n**踢出：** %d\n**封禁：** %d\n**禁言：** %d\n**等级：** %d\n**经验：** %d/%d\n**消息数：** %d",

		// 命令菜单
		"cmd_desc_warn":     "警告成员",
		"cmd_desc_kick":     "踢出成员",
		"cmd_desc_ban":      "封禁成员",
		"cmd_desc_timeout":  "禁言成员",
		"cmd_desc_unmute":   "解除禁言",
		"cmd_desc_unban":    "解除封禁",
		"cmd_desc_modlogs":  "查看最近的管理记录",
		"cmd_desc_case":     "查看单个案件",
		"cmd_desc_purge":    "删除最近的消息",
		"cmd_desc_userinfo": "查看成员的记录与等级",
		"cmd_desc_automod":  "开启或关闭自动管理",
		"cmd_desc_leveling": "开启或关闭等级系统",
		"cmd_desc_language": "设置机器人语言",
		"cmd_desc_modlog":   "设置或清除管理日志群组",
		"cmd_desc_settings": "查看群组设置",
		"cmd_desc_stats":    "查看管理统计",
		"cmd_desc_help":     "显示帮助",
	},

	LangTraditionalChinese: {
		"automod_deleted":         "⚠️ %s，你的訊息已被刪除：**%s**",
		"automod_reason_spam":     "偵測到洗版",
		"automod_reason_invite":   "偵測到邀請連結",
		"automod_reason_link":     "偵測到外部連結",
		"automod_reason_caps":     "大寫字母過多",
		"automod_reason_mentions": "提及人數超過上限 (%d)",
		"automod_reason_emojis":   "表情數量超過上限 (%d)",
		"automod_timeout_reason":  "自動管理：洗版",

		"level_up": "🎉 %s，你已升到 **%d 級**！",

		"dm_warn":    "你在 **%s** 收到警告\n\n**原因：** %s",
		"dm_kick":    "你已被移出 **%s**\n\n**原因：** %s",
		"dm_ban":     "你已被 **%s** 封鎖\n\n**原因：** %s",
		"dm_timeout": "你在 **%s** 被禁言\n\n**時長：** %s\n**原因：** %s",
		"dm_unmute":  "你在 **%s** 的禁言已解除\n\n**原因：** %s",

		"modlog_entry":    "**成員：** %s (%s)\n**操作：** %s\n**管理員：** %s\n**原因：** %s\n**案件編號：** %d",
		"modlog_duration": "\n**時長：** %s",
		"modlog_purge":    "**操作：** PURGE\n**頻道：** <#%s>\n**訊息數：** %d\n**管理員：** %s",

		"reply_success":        "**%s**：%s 已作用於 **%s**。\n**案件編號：** %d\n**原因：** %s",
		"reply_partial":        "操作已執行，但記錄未能完整保存：%s",
		"reply_no_cases":       "本群沒有管理記錄。",
		"reply_no_user_cases":  "**%s** 沒有管理記錄。",
		"reply_case_line":      "**案件 #%d** - %s\n*用戶：* %s\n*管理員：* %s\n*原因：* %s\n",
		"reply_case_not_found": "找不到案件 #%d。",
		"reply_settings":       "**自動管理：** %s\n**等級系統：** %s\n**語言：** %s\n**管理日誌：** %s",
		"reply_stats":          "**案件總數：** %d\n**生效封禁：** %d\n**警告：** %d\n**記錄用戶：** %d",
		"reply_usage":          "用法：%s",
		"reply_help":           "管理命令（回覆成員訊息或提供用戶 ID）：\n/warn <原因>\n/kick [原因]\n/ban [原因]\n/timeout <時長> [原因]\n/unmute [原因]\n/unban <用戶ID> [原因]\n/modlogs [用戶ID]\n/case <編號>\n/purge <數量> [用戶ID]\n/userinfo [用戶ID]\n\n管理員命令：\n/automod on|off\n/leveling on|off\n/language en|zh_CN|zh_TW\n/modlog here|off\n/settings\n/stats",
		"state_on":             "開啟",
		"state_off":            "關閉",
		"state_unset":          "未設定",
		"no_reason":            "未提供原因",
		"reply_purged":         "已刪除 **%d** 則訊息。",
		"reply_purged_user":    "已刪除 **%[2]s** 的 **%[1]d** 則訊息。",
		"reply_purge_none":     "沒有可刪除的訊息。超過 14 天的訊息無法批次刪除。",
		"reply_purge_range":    "數量必須在 %d 到 %d 之間。",
		"reply_timeout_range":  "時長無效，必須在 %s 到 %s 之間。",
		"reply_user_not_found": "本群中找不到該用戶。",
		"reply_userinfo":       "**%s** (%s)\n**警告：** %d\n**踢出：** %d\n**封禁：** %d\n**禁言：** %d\n**等級：** %d\n**經驗：** %d/%d\n**訊息數：** %d",

		// 命令選單
		"cmd_desc_warn":     "警告成員",
		"cmd_desc_kick":     "踢出成員",
		"cmd_desc_ban":      "封禁成員",
		"cmd_desc_timeout":  "禁言成員",
		"cmd_desc_unmute":   "解除禁言",
		"cmd_desc_unban":    "解除封禁",
		"cmd_desc_modlogs":  "查看最近的管理記錄",
		"cmd_desc_case":     "查看單個案件",
		"cmd_desc_purge":    "刪除最近的訊息",
		"cmd_desc_userinfo": "查看成員的記錄與等級",
		"cmd_desc_automod":  "開啟或關閉自動管理",
		"cmd_desc_leveling": "開啟或關閉等級系統",
		"cmd_desc_language": "設定機器人語言",
		"cmd_desc_modlog":   "設定或清除管理日誌群組",
		"cmd_desc_settings": "查看群組設定",
		"cmd_desc_stats":    "查看管理統計",
		"cmd_desc_help":     "顯示幫助",
	},
}

// GetTranslation returns the correct translation for a given language code and key
func GetTranslation(lang, key string) string {
	// Default to English if language not supported
	if _, ok := Translations[lang]; !ok {
		lang = LangEnglish
	}

	if translation, ok := Translations[lang][key]; ok {
		return translation
	}

	// Fall back to English if key not found in specified language
	if translation, ok := Translations[LangEnglish][key]; ok {
		return translation
	}

	// Return the key itself if translation not found
	return key
}

// GetLanguageName returns the localized name of a language code
func GetLanguageName(langCode string) string {
	switch langCode {
	case LangSimplifiedChinese:
		return "简体中文"
	case LangTraditionalChinese:
		return "繁体中文"
	case LangEnglish:
		return "English"
	default:
		return langCode
	}
}
